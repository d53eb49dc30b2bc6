// internal/models/game.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayedGame records the outcome of one ranked match.
type PlayedGame struct {
	ID         uuid.UUID `json:"id"`
	WinnerID   string    `json:"winner_id"`
	LoserID    string    `json:"loser_id"`
	FinishedAt time.Time `json:"finished_at"`
}
