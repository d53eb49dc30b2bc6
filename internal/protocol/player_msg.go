// internal/protocol/player_msg.go
package protocol

import (
	"encoding/base64"
	"strings"
)

// GameIDLen mirrors the lobby id length used in JOIN_LOBBY.
const GameIDLen = 4

// PlayerMessage is a logical message sent by the client. The concrete
// types below implement it; a Session type-switches over them.
type PlayerMessage interface {
	playerMessage()
}

type (
	// PlaceChip drops a chip into Column (0-based).
	PlaceChip struct{ Column int }
	// LobbyRequest opens a new lobby. Public requests worldwide
	// matchmaking, otherwise the lobby is private.
	LobbyRequest struct{ Public bool }
	// JoinLobby joins the private lobby with the given id.
	JoinLobby struct{ GameID string }
	// PlayAgain votes for a rematch after a finished game.
	PlayAgain struct{}
	// Leave exits the current lobby.
	Leave struct{}
	// Ping is an application-level ping answered with PONG.
	Ping struct{}
	// Login attaches the user identified by a session token.
	Login struct{ Token string }
	// Logout detaches the current user.
	Logout struct{}
	// BattleRequest invites the given user to a match.
	BattleRequest struct{ UserID string }
	// ChatMessage carries decoded chat text.
	ChatMessage struct{ Text string }
	// ChatRead marks the current chat thread as read.
	ChatRead struct{}
	// ReadyPong is the host's answer to READY_PING during
	// matchmaking.
	ReadyPong struct{}
)

func (PlaceChip) playerMessage()     {}
func (LobbyRequest) playerMessage()  {}
func (JoinLobby) playerMessage()     {}
func (PlayAgain) playerMessage()     {}
func (Leave) playerMessage()         {}
func (Ping) playerMessage()          {}
func (Login) playerMessage()         {}
func (Logout) playerMessage()        {}
func (BattleRequest) playerMessage() {}
func (ChatMessage) playerMessage()   {}
func (ChatRead) playerMessage()      {}
func (ReadyPong) playerMessage()     {}

// ParsePlayerMessage decodes one logical client message. The column
// of PC is only syntax-checked here (a single digit); range and turn
// checks belong to the game.
func ParsePlayerMessage(s string) (PlayerMessage, bool) {
	switch {
	case strings.HasPrefix(s, "PC:"):
		if len(s) != 4 || s[3] < '0' || s[3] > '9' {
			return nil, false
		}
		return PlaceChip{Column: int(s[3] - '0')}, true
	case s == "REQ_LOBBY":
		return LobbyRequest{}, true
	case s == "REQ_WW":
		return LobbyRequest{Public: true}, true
	case strings.HasPrefix(s, "JOIN_LOBBY:"):
		id := s[len("JOIN_LOBBY:"):]
		if len(id) != GameIDLen {
			return nil, false
		}
		return JoinLobby{GameID: strings.ToUpper(id)}, true
	case s == "PLAY_AGAIN":
		return PlayAgain{}, true
	case s == "LEAVE":
		return Leave{}, true
	case s == "PING":
		return Ping{}, true
	case strings.HasPrefix(s, "LOGIN:"):
		token := s[len("LOGIN:"):]
		if token == "" {
			return nil, false
		}
		return Login{Token: token}, true
	case s == "LOGOUT":
		return Logout{}, true
	case strings.HasPrefix(s, "BATTLE_REQ:"):
		uid := s[len("BATTLE_REQ:"):]
		if uid == "" {
			return nil, false
		}
		return BattleRequest{UserID: uid}, true
	case strings.HasPrefix(s, "CHAT_MSG:"):
		text, err := base64.StdEncoding.DecodeString(s[len("CHAT_MSG:"):])
		if err != nil {
			return nil, false
		}
		return ChatMessage{Text: string(text)}, true
	case s == "CHAT_READ":
		return ChatRead{}, true
	case s == "READY_PONG":
		return ReadyPong{}, true
	default:
		return nil, false
	}
}
