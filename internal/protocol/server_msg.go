// internal/protocol/server_msg.go
package protocol

import (
	"encoding/base64"
	"fmt"
)

// ErrorKind names the client-visible error categories carried in
// ERROR:<kind> messages.
type ErrorKind string

const (
	ErrInternal             ErrorKind = "Internal"
	ErrLobbyNotFound        ErrorKind = "LobbyNotFound"
	ErrLobbyFull            ErrorKind = "LobbyFull"
	ErrInvalidColumn        ErrorKind = "InvalidColumn"
	ErrNotInLobby           ErrorKind = "NotInLobby"
	ErrNotYourTurn          ErrorKind = "NotYourTurn"
	ErrAlreadyInLobby       ErrorKind = "AlreadyInLobby"
	ErrGameNotStarted       ErrorKind = "GameNotStarted"
	ErrGameNotOver          ErrorKind = "GameNotOver"
	ErrIncorrectCredentials ErrorKind = "IncorrectCredentials"
	ErrNotLoggedIn          ErrorKind = "NotLoggedIn"
	ErrUserNotPlaying       ErrorKind = "UserNotPlaying"
	ErrNoSuchUser           ErrorKind = "NoSuchUser"
	ErrAlreadyPlaying       ErrorKind = "AlreadyPlaying"
	ErrMissingSessionToken  ErrorKind = "MissingSessionToken"
)

// ServerMessage is a logical message sent to the client.
type ServerMessage interface {
	Serialize() string
}

// SrvPlaceChip relays the opponent's move.
type SrvPlaceChip struct{ Column int }

func (m SrvPlaceChip) Serialize() string { return fmt.Sprintf("PC:%d", m.Column) }

// SrvOpponentJoined announces the second player entering the lobby.
type SrvOpponentJoined struct{}

func (SrvOpponentJoined) Serialize() string { return "OPP_JOINED" }

// SrvOpponentLeaving announces the opponent leaving the lobby.
type SrvOpponentLeaving struct{}

func (SrvOpponentLeaving) Serialize() string { return "OPP_LEAVING" }

// SrvGameStart starts a game. OpponentUID is included for ranked
// games so the client can show who it is playing against.
type SrvGameStart struct {
	YourTurn    bool
	OpponentUID string
}

func (m SrvGameStart) Serialize() string {
	turn := "OPP"
	if m.YourTurn {
		turn = "YOU"
	}
	if m.OpponentUID != "" {
		return fmt.Sprintf("GAME_START:%s:%s", turn, m.OpponentUID)
	}
	return "GAME_START:" + turn
}

// SrvGameOver ends a game from the recipient's perspective.
type SrvGameOver struct{ YouWon bool }

func (m SrvGameOver) Serialize() string {
	if m.YouWon {
		return "GAME_OVER:YOU"
	}
	return "GAME_OVER:OPP"
}

// SrvLobbyClosing tells the client its lobby is gone.
type SrvLobbyClosing struct{}

func (SrvLobbyClosing) Serialize() string { return "LOBBY_CLOSING" }

// SrvOkay is the generic positive acknowledgement.
type SrvOkay struct{}

func (SrvOkay) Serialize() string { return "OKAY" }

// SrvPong answers an application-level PING.
type SrvPong struct{}

func (SrvPong) Serialize() string { return "PONG" }

// SrvReadyPing asks a matchmaking host to confirm it is still there.
type SrvReadyPing struct{}

func (SrvReadyPing) Serialize() string { return "READY_PING" }

// SrvError reports a recoverable error. A zero Kind serializes to a
// bare ERROR.
type SrvError struct{ Kind ErrorKind }

func (m SrvError) Serialize() string {
	if m.Kind == "" {
		return "ERROR"
	}
	return "ERROR:" + string(m.Kind)
}

// SrvBattleRequest forwards a friend's invitation together with the
// lobby to join.
type SrvBattleRequest struct {
	FromUID string
	GameID  string
}

func (m SrvBattleRequest) Serialize() string {
	return fmt.Sprintf("BATTLE_REQ:%s:%s", m.FromUID, m.GameID)
}

// SrvServerState is the periodic connection-count broadcast. The
// boolean tells whether a public lobby is waiting for an opponent.
type SrvServerState struct {
	Connections   int
	PlayerWaiting bool
}

func (m SrvServerState) Serialize() string {
	return fmt.Sprintf("CURRENT_SERVER_STATE:%d:%t", m.Connections, m.PlayerWaiting)
}

// SrvChatMessage delivers one chat message. FromUID is empty for
// anonymous senders; the text travels base64-encoded.
type SrvChatMessage struct {
	ThreadID  string
	Index     int64
	Timestamp int64
	FromUID   string
	Text      string
}

func (m SrvChatMessage) Serialize() string {
	b64 := base64.StdEncoding.EncodeToString([]byte(m.Text))
	return fmt.Sprintf("CHAT_MSG:%s:%d:%d:%s:%s", m.ThreadID, m.Index, m.Timestamp, m.FromUID, b64)
}

// SrvChatRead relays a read marker for a thread.
type SrvChatRead struct{ ThreadID string }

func (m SrvChatRead) Serialize() string { return "CHAT_READ:" + m.ThreadID }

// SrvLobbyID is the legacy lobby-created reply used before the HELLO
// handshake existed.
type SrvLobbyID struct{ GameID string }

func (m SrvLobbyID) Serialize() string { return "LOBBY_ID:" + m.GameID }
