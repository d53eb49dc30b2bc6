// internal/models/chat.go
package models

import (
	"crypto/rand"
	"math/big"
)

// ChatThreadIDLen is the length of a chat thread id.
const ChatThreadIDLen = 16

// GlobalChatThreadID is the reserved thread id of the global chat.
const GlobalChatThreadID = "0000000000000000"

const chatThreadAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewChatThreadID mints a random 16-char alphanumeric thread id.
func NewChatThreadID() string {
	b := make([]byte, ChatThreadIDLen)
	max := big.NewInt(int64(len(chatThreadAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		b[i] = chatThreadAlphabet[n.Int64()]
	}
	return string(b)
}

// ChatMessage is one archived message in a thread. Index is the
// monotonically increasing position of the message within its thread.
type ChatMessage struct {
	ThreadID  string  `json:"thread_id"`
	Index     int64   `json:"id"`
	SenderID  *string `json:"from,omitempty"`
	Content   string  `json:"content"`
	Timestamp int64   `json:"timestamp"` // unix seconds
}
