// internal/models/user.go
package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// UserIDLen is the length of the public user id (lowercase hex).
const UserIDLen = 12

var userIDPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// NewUserID mints a fresh 12-character lowercase hex user id.
func NewUserID() (string, error) {
	b := make([]byte, UserIDLen/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate user id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidUserID reports whether s is a well-formed user id.
func ValidUserID(s string) bool {
	return userIDPattern.MatchString(s)
}

// User is a registered account row.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Password  string    `json:"-"` // encoded argon2id hash
	CreatedAt time.Time `json:"created_at"`
}

// UserInfo is the slice of a User the realtime layer carries around:
// what a logged-in Session knows about itself.
type UserInfo struct {
	ID       string
	Username string
}
