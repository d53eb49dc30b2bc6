// internal/users/directory.go

// Package users implements the ws.UserDirectory: JWT authentication
// against the user table plus the in-memory presence table that maps
// logged-in users to their live sessions.
package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/auth"
	"github.com/fourrow/server/internal/database"
	"github.com/fourrow/server/internal/models"
	"github.com/fourrow/server/internal/ws"
)

// Directory resolves login tokens and tracks which session each user
// currently plays on.
type Directory struct {
	mu      sync.RWMutex
	playing map[string]*ws.Session // uid -> session
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{playing: make(map[string]*ws.Session)}
}

// Authenticate verifies a JWT login token and loads the user. Bad
// tokens and missing users map to ws.ErrUnknownUser; anything else is
// an infrastructure error.
func (d *Directory) Authenticate(ctx context.Context, token string) (*models.UserInfo, error) {
	uid, err := auth.AuthenticateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ws.ErrUnknownUser, err)
	}
	u, err := database.GetUserByID(ctx, uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ws.ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return &models.UserInfo{ID: u.ID, Username: u.Username}, nil
}

// SetPlaying binds a user to a session. A login from a second device
// displaces the first binding.
func (d *Directory) SetPlaying(uid string, s *ws.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing[uid] = s
}

// ClearPlaying removes the binding, but only if it still points at
// the given session; a newer login keeps its binding.
func (d *Directory) ClearPlaying(uid string, s *ws.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing[uid] == s {
		delete(d.playing, uid)
	}
}

// ResolveBattleTarget returns the session a user currently plays on.
func (d *Directory) ResolveBattleTarget(uid string) (*ws.Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.playing[uid]
	return s, ok
}

// RecordPlayedGame persists a ranked result.
func (d *Directory) RecordPlayedGame(ctx context.Context, winnerUID, loserUID string) error {
	if winnerUID == "" || loserUID == "" {
		return errors.New("ranked game without both uids")
	}
	g := &models.PlayedGame{WinnerID: winnerUID, LoserID: loserUID, FinishedAt: time.Now()}
	if err := database.RecordPlayedGame(ctx, g); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"winner": winnerUID, "loser": loserUID}).Info("ranked game recorded")
	return nil
}
