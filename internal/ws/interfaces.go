// internal/ws/interfaces.go
package ws

import (
	"context"
	"errors"

	"github.com/fourrow/server/internal/models"
)

// ErrUnknownUser is returned (possibly wrapped) by
// UserDirectory.Authenticate when the token is invalid or names no
// user. Any other error is an infrastructure failure and surfaces to
// the client as ERROR:Internal rather than bad credentials.
var ErrUnknownUser = errors.New("unknown user")

// FrameWriter is the adapter's view of one socket. The WebSocket
// handler implements it; the adapter is the only writer.
type FrameWriter interface {
	WriteFrame(ctx context.Context, frame string) error
	Close()
}

// UserDirectory is the session layer's window into the user store
// and the presence table.
type UserDirectory interface {
	// Authenticate resolves a login token to a user.
	Authenticate(ctx context.Context, token string) (*models.UserInfo, error)
	// SetPlaying and ClearPlaying maintain the uid -> session
	// presence table used to route battle requests.
	SetPlaying(uid string, s *Session)
	ClearPlaying(uid string, s *Session)
	// ResolveBattleTarget returns the session a user is currently
	// attached to, if any.
	ResolveBattleTarget(uid string) (*Session, bool)
	// RecordPlayedGame persists the outcome of a ranked match.
	RecordPlayedGame(ctx context.Context, winnerUID, loserUID string) error
}

// MessageArchive persists chat threads.
type MessageArchive interface {
	// Append stores one message and returns it with its assigned
	// index and timestamp. fromUID is nil for anonymous senders.
	Append(ctx context.Context, threadID string, fromUID *string, text string) (*models.ChatMessage, error)
}
