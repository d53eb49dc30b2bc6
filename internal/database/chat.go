// internal/database/chat.go

package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fourrow/server/internal/models"
)

// InsertChatMessage appends one message to a thread and returns it
// with its assigned index and timestamp. The index is allocated
// inside the transaction so concurrent appends to the same thread
// never collide.
func InsertChatMessage(ctx context.Context, threadID string, senderID *string, content string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ThreadID: threadID,
		SenderID: senderID,
		Content:  content,
	}

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var createdAt time.Time
		q := `
			INSERT INTO chat_messages (thread_id, msg_index, sender_id, content)
			VALUES (
				$1,
				COALESCE((SELECT MAX(msg_index) FROM chat_messages WHERE thread_id=$1), 0) + 1,
				$2, $3
			)
			RETURNING msg_index, created_at
		`
		if err := tx.QueryRow(ctx, q, threadID, senderID, content).Scan(&msg.Index, &createdAt); err != nil {
			return err
		}
		msg.Timestamp = createdAt.Unix()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListChatMessages returns up to limit messages of a thread with
// index < beforeIndex, newest first. A beforeIndex of 0 means "from
// the end". The second return value tells whether older messages
// remain.
func ListChatMessages(ctx context.Context, threadID string, beforeIndex int64, limit int) ([]models.ChatMessage, bool, error) {
	if beforeIndex <= 0 {
		beforeIndex = int64(^uint64(0) >> 1) // max int64
	}
	q := `
		SELECT thread_id, msg_index, sender_id, content, created_at
		FROM chat_messages
		WHERE thread_id=$1 AND msg_index < $2
		ORDER BY msg_index DESC
		LIMIT $3
	`
	rows, err := DB.Query(ctx, q, threadID, beforeIndex, limit+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var createdAt time.Time
		if err := rows.Scan(&m.ThreadID, &m.Index, &m.SenderID, &m.Content, &createdAt); err != nil {
			return nil, false, err
		}
		m.Timestamp = createdAt.Unix()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	more := len(msgs) > limit
	if more {
		msgs = msgs[:limit]
	}
	return msgs, more, nil
}
