// internal/protocol/frame.go

// Package protocol implements the text codec spoken over the game
// WebSocket: the reliability framing (MSG / ACK / ERR), the HELLO
// handshake and the logical player and server messages carried inside
// MSG frames. Everything is colon-delimited ASCII; frames use a
// double-colon separator so that payloads may contain single colons.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Frame is one reliability-layer unit. Exactly one of the concrete
// types MsgFrame, AckFrame and ErrFrame implements it.
type Frame interface {
	Serialize() string
}

// MsgFrame carries a logical message with a per-direction id.
// Ids start at 1 and increase by one per sent message.
type MsgFrame struct {
	ID      uint64
	Payload string
}

func (f MsgFrame) Serialize() string {
	return fmt.Sprintf("MSG::%d::%s", f.ID, f.Payload)
}

// AckFrame acknowledges receipt of the MsgFrame with the same id.
type AckFrame struct {
	ID uint64
}

func (f AckFrame) Serialize() string {
	return fmt.Sprintf("ACK::%d", f.ID)
}

// ErrFrame is a diagnostic for the peer; it is never retransmitted
// and carries no id.
type ErrFrame struct {
	Reason string
}

func (f ErrFrame) Serialize() string {
	return "ERR::" + f.Reason
}

// ParseFrame decodes one wire frame. It returns false for anything
// that is not a well-formed MSG, ACK or ERR frame.
func ParseFrame(s string) (Frame, bool) {
	switch {
	case strings.HasPrefix(s, "MSG::"):
		rest := s[len("MSG::"):]
		sep := strings.Index(rest, "::")
		if sep < 0 {
			return nil, false
		}
		id, err := strconv.ParseUint(rest[:sep], 10, 64)
		if err != nil || id == 0 {
			return nil, false
		}
		return MsgFrame{ID: id, Payload: rest[sep+2:]}, true
	case strings.HasPrefix(s, "ACK::"):
		id, err := strconv.ParseUint(s[len("ACK::"):], 10, 64)
		if err != nil || id == 0 {
			return nil, false
		}
		return AckFrame{ID: id}, true
	case strings.HasPrefix(s, "ERR::"):
		return ErrFrame{Reason: s[len("ERR::"):]}, true
	default:
		return nil, false
	}
}
