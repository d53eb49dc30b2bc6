// internal/chat/archive.go

// Package chat implements the ws.MessageArchive on top of the
// chat_messages table.
package chat

import (
	"context"

	"github.com/fourrow/server/internal/database"
	"github.com/fourrow/server/internal/models"
)

// DefaultPageSize bounds one chat history read.
const DefaultPageSize = 50

// Archive persists chat threads.
type Archive struct{}

// NewArchive returns the database-backed archive.
func NewArchive() *Archive { return &Archive{} }

// Append stores one message and returns it with its assigned index
// and timestamp.
func (a *Archive) Append(ctx context.Context, threadID string, fromUID *string, text string) (*models.ChatMessage, error) {
	return database.InsertChatMessage(ctx, threadID, fromUID, text)
}

// ReadPage returns up to DefaultPageSize messages older than
// beforeIndex (0 = newest), newest first, and whether more remain.
func (a *Archive) ReadPage(ctx context.Context, threadID string, beforeIndex int64) ([]models.ChatMessage, bool, error) {
	return database.ListChatMessages(ctx, threadID, beforeIndex, DefaultPageSize)
}
