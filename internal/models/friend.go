// internal/models/friend.go
package models

import "time"

// Friend is one edge of the friend graph. user1 is always the side
// that sent the request.
type Friend struct {
	User1ID string    `json:"user1_id"`
	User2ID string    `json:"user2_id"`
	Status  string    `json:"status"` // pending | accepted
	Updated time.Time `json:"updated_at,omitempty"`
}
