// internal/ws/session.go
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/game"
	"github.com/fourrow/server/internal/models"
	"github.com/fourrow/server/internal/protocol"
)

// membership is the session's view of its lobby attachment.
type membership int

const (
	memberIdle membership = iota
	memberWaitingForHost
	memberInLobby
)

// Session is the per-client logical actor. It dispatches parsed
// player messages, owns the login and lobby-membership state machine
// and routes server messages back through its adapter. A session
// lives exactly as long as its adapter.
type Session struct {
	cfg    Config
	token  string
	legacy bool
	log    *logrus.Entry

	adapter  *Adapter
	registry *ConnectionRegistry
	lobbies  *LobbyRegistry
	users    UserDirectory

	mailbox   chan sessionMsg
	done      chan struct{}
	closeOnce sync.Once

	// State below is owned by the run goroutine.
	member membership
	player game.Player
	lobby  *Lobby
	user   *models.UserInfo
}

type sessionMsg struct {
	kind   sessionMsgKind
	player protocol.PlayerMessage
	notice lobbyNotice
	lobby  *Lobby
}

type sessionMsgKind int

const (
	smPlayer sessionMsgKind = iota
	smLobbyNotice
	smAdapterClosed
)

type lobbyNotice int

const (
	noticeGameStarting lobbyNotice = iota
	noticeLobbyClosed
)

func newSession(cfg Config, token string, legacy bool, adapter *Adapter,
	registry *ConnectionRegistry, lobbies *LobbyRegistry, users UserDirectory) *Session {

	return &Session{
		cfg:      cfg,
		token:    token,
		legacy:   legacy,
		log:      logrus.WithField("session", shortToken(token)),
		adapter:  adapter,
		registry: registry,
		lobbies:  lobbies,
		users:    users,
		mailbox:  make(chan sessionMsg, 64),
		done:     make(chan struct{}),
	}
}

// Token returns the connection token this session is keyed by.
func (s *Session) Token() string { return s.token }

func (s *Session) start() { go s.run() }

// deliver pushes a server message to the client. It goes straight to
// the adapter so lobby and registry broadcasts can never deadlock
// against the session's own mailbox.
func (s *Session) deliver(msg protocol.ServerMessage) {
	s.adapter.Send(msg)
}

// postPlayerMessage feeds one parsed client message (called by the
// adapter, in id order).
func (s *Session) postPlayerMessage(msg protocol.PlayerMessage) {
	s.post(sessionMsg{kind: smPlayer, player: msg})
}

// postLobbyNotice feeds a lifecycle notification from a lobby.
func (s *Session) postLobbyNotice(n lobbyNotice, l *Lobby) {
	s.post(sessionMsg{kind: smLobbyNotice, notice: n, lobby: l})
}

// adapterClosed is the teardown signal; called once by the adapter.
func (s *Session) adapterClosed() {
	s.post(sessionMsg{kind: smAdapterClosed})
}

func (s *Session) post(m sessionMsg) {
	select {
	case s.mailbox <- m:
	case <-s.done:
	}
}

func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case m := <-s.mailbox:
			switch m.kind {
			case smPlayer:
				s.handlePlayerMessage(m.player)
			case smLobbyNotice:
				s.handleLobbyNotice(m.notice, m.lobby)
			case smAdapterClosed:
				s.teardown()
				return
			}
		}
	}
}

func (s *Session) handlePlayerMessage(msg protocol.PlayerMessage) {
	switch m := msg.(type) {
	case protocol.Ping:
		s.deliver(protocol.SrvPong{})
	case protocol.Login:
		s.handleLogin(m.Token)
	case protocol.Logout:
		s.handleLogout()
	case protocol.LobbyRequest:
		s.handleLobbyRequest(m.Public)
	case protocol.JoinLobby:
		s.handleJoinLobby(m.GameID)
	case protocol.ReadyPong:
		if s.member != memberWaitingForHost {
			s.deliver(protocol.SrvError{Kind: protocol.ErrNotInLobby})
			return
		}
		s.lobby.readyPong(s.player)
	case protocol.PlaceChip:
		if s.member != memberInLobby {
			s.deliver(protocol.SrvError{Kind: protocol.ErrNotInLobby})
			return
		}
		s.lobby.handleEvent(s.player, clientEvent{kind: cePlaceChip, column: m.Column})
	case protocol.PlayAgain:
		if s.member != memberInLobby {
			s.deliver(protocol.SrvError{Kind: protocol.ErrNotInLobby})
			return
		}
		s.lobby.handleEvent(s.player, clientEvent{kind: ceRematch})
	case protocol.Leave:
		s.handleLeave()
	case protocol.BattleRequest:
		s.handleBattleRequest(m.UserID)
	case protocol.ChatMessage:
		s.handleChat(m.Text)
	case protocol.ChatRead:
		s.handleChatRead()
	}
}

func (s *Session) handleLogin(token string) {
	if s.member == memberInLobby {
		s.deliver(protocol.SrvError{Kind: protocol.ErrAlreadyInLobby})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := s.users.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			s.deliver(protocol.SrvError{Kind: protocol.ErrIncorrectCredentials})
			return
		}
		// Directory outage, not a bad token. The session stays up.
		s.log.WithError(err).Warn("login lookup failed")
		s.deliver(protocol.SrvError{Kind: protocol.ErrInternal})
		return
	}
	if info == nil {
		s.deliver(protocol.SrvError{Kind: protocol.ErrIncorrectCredentials})
		return
	}

	if s.user != nil {
		s.users.ClearPlaying(s.user.ID, s)
	}
	s.user = info
	s.users.SetPlaying(info.ID, s)
	s.registry.setUser(s.token, info)
	s.deliver(protocol.SrvOkay{})
}

func (s *Session) handleLogout() {
	if s.user != nil {
		s.users.ClearPlaying(s.user.ID, s)
		s.user = nil
		s.registry.setUser(s.token, nil)
	}
	s.deliver(protocol.SrvOkay{})
}

func (s *Session) handleLobbyRequest(public bool) {
	if s.member != memberIdle {
		s.deliver(protocol.SrvError{Kind: protocol.ErrAlreadyInLobby})
		return
	}

	res := s.lobbies.newLobby(s, s.uid(), public)
	if res.waiting {
		// Matched with the currently open public host; the lobby
		// acknowledges the join.
		s.member = memberWaitingForHost
		s.player = game.PlayerTwo
		s.lobby = res.lobby
		return
	}
	s.member = memberWaitingForHost
	s.player = game.PlayerOne
	s.lobby = res.lobby
	if s.legacy {
		// Only pre-handshake clients get the id as a dedicated reply.
		s.deliver(protocol.SrvLobbyID{GameID: res.gameID})
		return
	}
	s.deliver(protocol.SrvOkay{})
}

func (s *Session) handleJoinLobby(gameID string) {
	if s.member != memberIdle {
		s.deliver(protocol.SrvError{Kind: protocol.ErrAlreadyInLobby})
		return
	}

	lobby, ok := s.lobbies.joinLobby(gameID, s, s.uid())
	if !ok {
		s.deliver(protocol.SrvError{Kind: protocol.ErrLobbyNotFound})
		return
	}
	// The lobby acknowledges (or rejects) the join itself.
	s.member = memberWaitingForHost
	s.player = game.PlayerTwo
	s.lobby = lobby
}

func (s *Session) handleLeave() {
	if s.member == memberIdle {
		s.deliver(protocol.SrvError{Kind: protocol.ErrNotInLobby})
		return
	}
	s.lobby.handleEvent(s.player, clientEvent{kind: ceLeave})
	s.resetMembership()
	s.deliver(protocol.SrvOkay{})
}

func (s *Session) handleBattleRequest(targetUID string) {
	if s.user == nil {
		s.deliver(protocol.SrvError{Kind: protocol.ErrNotLoggedIn})
		return
	}
	if s.member != memberIdle {
		s.deliver(protocol.SrvError{Kind: protocol.ErrAlreadyInLobby})
		return
	}

	target, ok := s.users.ResolveBattleTarget(targetUID)
	if !ok || target == nil {
		s.deliver(protocol.SrvError{Kind: protocol.ErrUserNotPlaying})
		return
	}

	res := s.lobbies.battleRequest(s, s.user.ID, target, targetUID)
	s.member = memberWaitingForHost
	s.player = game.PlayerOne
	s.lobby = res.lobby
	s.deliver(protocol.SrvOkay{})
}

func (s *Session) handleChat(text string) {
	if s.member == memberInLobby {
		s.lobby.handleEvent(s.player, clientEvent{kind: ceChat, text: text})
		return
	}
	s.registry.globalChat(s, s.uidPtr(), text)
}

func (s *Session) handleChatRead() {
	if s.member == memberInLobby {
		s.lobby.handleEvent(s.player, clientEvent{kind: ceChatRead})
		return
	}
	s.registry.globalChatRead(s)
}

func (s *Session) handleLobbyNotice(n lobbyNotice, l *Lobby) {
	if s.lobby != l {
		return // stale notice from a lobby we already left
	}
	switch n {
	case noticeGameStarting:
		if s.member == memberWaitingForHost {
			s.member = memberInLobby
		}
	case noticeLobbyClosed:
		s.resetMembership()
	}
}

func (s *Session) resetMembership() {
	s.member = memberIdle
	s.lobby = nil
}

func (s *Session) uid() string {
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *Session) uidPtr() *string {
	if s.user == nil {
		return nil
	}
	uid := s.user.ID
	return &uid
}

// teardown runs when the adapter is gone for good: a joined lobby
// sees a disconnect-leave, presence is cleared and the registry
// forgets the token.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		if s.member != memberIdle && s.lobby != nil {
			s.lobby.handleEvent(s.player, clientEvent{kind: ceLeave, disconnect: true})
		}
		if s.user != nil {
			s.users.ClearPlaying(s.user.ID, s)
		}
		s.registry.remove(s.token)
		close(s.done)
	})
}
