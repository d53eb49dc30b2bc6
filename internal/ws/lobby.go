// internal/ws/lobby.go
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/cache"
	"github.com/fourrow/server/internal/game"
	"github.com/fourrow/server/internal/models"
	"github.com/fourrow/server/internal/protocol"
)

// lobbyPhase tracks where a lobby is in its lifecycle.
type lobbyPhase int

const (
	phaseOnePlayer lobbyPhase = iota
	phaseWaitingForPong
	phaseTwoPlayers
)

// participant is one side of a lobby. UID is empty for anonymous
// players; a match is ranked only when both sides carry one.
type participant struct {
	sess   *Session
	uid    string
	player game.Player
}

// Lobby arbitrates one match: the join handshake, turn order, chat
// relay, rematch voting and teardown. It exclusively owns its board.
type Lobby struct {
	cfg      Config
	gameID   string
	threadID string
	public   bool
	log      *logrus.Entry

	users    UserDirectory
	archive  MessageArchive
	registry *LobbyRegistry

	mailbox   chan lobbyMsg
	done      chan struct{}
	closeOnce sync.Once

	// State below is owned by the run goroutine.
	phase         lobbyPhase
	host          *participant
	joiner        *participant
	board         *game.Board
	lastActivity  time.Time
	readyDeadline time.Time
	startAt       time.Time
	started       bool // GAME_START already sent for the current board
}

type lobbyMsg struct {
	kind   lobbyMsgKind
	sess   *Session // join
	uid    string   // join
	player game.Player
	event  clientEvent
}

type lobbyMsgKind int

const (
	lmJoin lobbyMsgKind = iota
	lmEvent
	lmReadyPong
)

// clientEvent is a player action forwarded by a Session.
type clientEvent struct {
	kind       clientEventKind
	column     int
	text       string
	disconnect bool
}

type clientEventKind int

const (
	cePlaceChip clientEventKind = iota
	ceRematch
	ceLeave
	ceChat
	ceChatRead
)

func newLobby(cfg Config, gameID string, public bool, host *Session, hostUID string,
	users UserDirectory, archive MessageArchive, registry *LobbyRegistry) *Lobby {

	l := &Lobby{
		cfg:      cfg,
		gameID:   gameID,
		threadID: models.NewChatThreadID(),
		public:   public,
		log:      logrus.WithField("lobby", gameID),
		users:    users,
		archive:  archive,
		registry: registry,
		mailbox:  make(chan lobbyMsg, 64),
		done:     make(chan struct{}),
		phase:    phaseOnePlayer,
		host:     &participant{sess: host, uid: hostUID, player: game.PlayerOne},
	}
	l.lastActivity = time.Now()
	return l
}

// GameID returns the lobby's public identifier.
func (l *Lobby) GameID() string { return l.gameID }

func (l *Lobby) start() { go l.run() }

// join delivers the second player. Rejections (lobby already full)
// surface as LobbyFull on the joining session.
func (l *Lobby) join(s *Session, uid string) {
	l.post(lobbyMsg{kind: lmJoin, sess: s, uid: uid})
}

// handleEvent feeds one player action.
func (l *Lobby) handleEvent(player game.Player, ev clientEvent) {
	l.post(lobbyMsg{kind: lmEvent, player: player, event: ev})
}

// readyPong is the host's answer to READY_PING.
func (l *Lobby) readyPong(player game.Player) {
	l.post(lobbyMsg{kind: lmReadyPong, player: player})
}

func (l *Lobby) post(m lobbyMsg) {
	select {
	case l.mailbox <- m:
	case <-l.done:
	}
}

func (l *Lobby) run() {
	l.publishEvent(cache.EventLobbyCreated, map[string]interface{}{"public": l.public})

	// One ticker drives the ready timeout, the delayed game start
	// and the idle watchdog. It runs at the finest granularity any
	// of them needs.
	interval := l.cfg.StartDelay / 4
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	idleCheck := time.NewTicker(l.cfg.IdleCheckInterval)
	defer idleCheck.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.checkTimers()
		case <-idleCheck.C:
			if time.Since(l.lastActivity) > l.cfg.LobbyIdleTimeout {
				l.log.Info("idle watchdog closing lobby")
				l.close()
				return
			}
		case m := <-l.mailbox:
			switch m.kind {
			case lmJoin:
				l.handleJoin(m.sess, m.uid)
			case lmReadyPong:
				l.handleReadyPong(m.player)
			case lmEvent:
				l.handleClientEvent(m.player, m.event)
			}
			select {
			case <-l.done:
				return
			default:
			}
		}
	}
}

func (l *Lobby) checkTimers() {
	now := time.Now()
	if l.phase == phaseWaitingForPong && now.After(l.readyDeadline) {
		l.log.Debug("host missed ready pong, closing")
		l.joiner.sess.deliver(protocol.SrvError{Kind: protocol.ErrLobbyNotFound})
		l.close()
		return
	}
	if l.phase == phaseTwoPlayers && !l.started && now.After(l.startAt) {
		l.sendGameStart()
	}
}

func (l *Lobby) handleJoin(s *Session, uid string) {
	if l.phase != phaseOnePlayer {
		s.deliver(protocol.SrvError{Kind: protocol.ErrLobbyFull})
		// The session optimistically marked itself as waiting; put
		// it back to idle.
		s.postLobbyNotice(noticeLobbyClosed, l)
		return
	}
	l.touch()
	l.joiner = &participant{sess: s, uid: uid, player: game.PlayerTwo}
	l.phase = phaseWaitingForPong
	l.readyDeadline = time.Now().Add(l.cfg.ReadyTimeout)

	s.deliver(protocol.SrvOkay{})
	l.host.sess.deliver(protocol.SrvOpponentJoined{})
	l.host.sess.deliver(protocol.SrvReadyPing{})
	l.publishEvent(cache.EventPlayerJoined, nil)
}

func (l *Lobby) handleReadyPong(player game.Player) {
	if l.phase != phaseWaitingForPong || player != l.host.player {
		return
	}
	l.touch()
	l.phase = phaseTwoPlayers
	l.board = game.NewBoard()
	l.started = false
	l.startAt = time.Now().Add(l.cfg.StartDelay)

	// Both sessions now consider themselves in a running lobby.
	l.host.sess.postLobbyNotice(noticeGameStarting, l)
	l.joiner.sess.postLobbyNotice(noticeGameStarting, l)
}

func (l *Lobby) sendGameStart() {
	l.started = true
	ranked := l.ranked()
	for _, pair := range [2][2]*participant{{l.host, l.joiner}, {l.joiner, l.host}} {
		me, opp := pair[0], pair[1]
		msg := protocol.SrvGameStart{YourTurn: l.board.Turn == me.player}
		if ranked {
			msg.OpponentUID = opp.uid
		}
		me.sess.deliver(msg)
	}
	l.publishEvent(cache.EventGameStarted, map[string]interface{}{"ranked": ranked})
}

func (l *Lobby) ranked() bool {
	return l.host != nil && l.joiner != nil && l.host.uid != "" && l.joiner.uid != ""
}

func (l *Lobby) handleClientEvent(player game.Player, ev clientEvent) {
	l.touch()
	switch ev.kind {
	case cePlaceChip:
		l.handlePlaceChip(player, ev.column)
	case ceRematch:
		l.handleRematch(player)
	case ceLeave:
		l.handleLeave(player, ev.disconnect)
	case ceChat:
		l.handleChat(player, ev.text)
	case ceChatRead:
		if other := l.other(player); other != nil {
			other.sess.deliver(protocol.SrvChatRead{ThreadID: l.threadID})
		}
	}
}

func (l *Lobby) handlePlaceChip(player game.Player, column int) {
	mover := l.bySide(player)
	if l.phase != phaseTwoPlayers || !l.started {
		mover.sess.deliver(protocol.SrvError{Kind: protocol.ErrGameNotStarted})
		return
	}

	winner, err := l.board.Place(column, player)
	if err != nil {
		mover.sess.deliver(protocol.SrvError{Kind: placeErrorKind(err)})
		return
	}

	mover.sess.deliver(protocol.SrvOkay{})
	opponent := l.other(player)
	opponent.sess.deliver(protocol.SrvPlaceChip{Column: column})

	if winner == nil {
		return
	}
	if winner.Player == nil {
		// Full board, nobody won.
		mover.sess.deliver(protocol.SrvGameOver{YouWon: false})
		opponent.sess.deliver(protocol.SrvGameOver{YouWon: false})
	} else {
		mover.sess.deliver(protocol.SrvGameOver{YouWon: true})
		opponent.sess.deliver(protocol.SrvGameOver{YouWon: false})
		if l.ranked() {
			l.recordPlayedGame(mover.uid, opponent.uid)
		}
	}
	l.publishEvent(cache.EventGameOver, nil)
}

func placeErrorKind(err error) protocol.ErrorKind {
	switch err {
	case game.ErrNotYourTurn:
		return protocol.ErrNotYourTurn
	case game.ErrGameOver:
		return protocol.ErrGameNotStarted
	default:
		return protocol.ErrInvalidColumn
	}
}

func (l *Lobby) recordPlayedGame(winnerUID, loserUID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.users.RecordPlayedGame(ctx, winnerUID, loserUID); err != nil {
		l.log.WithError(err).Warn("failed to record played game")
	}
}

func (l *Lobby) handleRematch(player game.Player) {
	requester := l.bySide(player)
	if l.phase != phaseTwoPlayers || l.board == nil || l.board.Winner == nil {
		requester.sess.deliver(protocol.SrvError{Kind: protocol.ErrGameNotOver})
		return
	}

	w := l.board.Winner
	if w.RematchRequester == nil {
		p := player
		w.RematchRequester = &p
		requester.sess.deliver(protocol.SrvOkay{})
		return
	}
	if *w.RematchRequester == player {
		requester.sess.deliver(protocol.SrvOkay{})
		return
	}

	// Both sides voted: fresh board, new random turn, new game
	// after the usual start delay.
	l.board.Reset()
	l.started = false
	l.startAt = time.Now().Add(l.cfg.StartDelay)
}

func (l *Lobby) handleLeave(player game.Player, disconnect bool) {
	other := l.other(player)
	if other != nil {
		other.sess.deliver(protocol.SrvOpponentLeaving{})
	}
	if disconnect {
		l.log.Debug("participant disconnected, closing lobby")
	}
	l.close()
}

func (l *Lobby) handleChat(player game.Player, text string) {
	sender := l.bySide(player)
	var fromUID *string
	if sender.uid != "" {
		uid := sender.uid
		fromUID = &uid
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := l.archive.Append(ctx, l.threadID, fromUID, text)
	if err != nil {
		l.log.WithError(err).Warn("failed to archive lobby chat")
		sender.sess.deliver(protocol.SrvError{Kind: protocol.ErrInternal})
		return
	}

	if other := l.other(player); other != nil {
		out := protocol.SrvChatMessage{
			ThreadID:  msg.ThreadID,
			Index:     msg.Index,
			Timestamp: msg.Timestamp,
			Text:      text,
		}
		if fromUID != nil {
			out.FromUID = *fromUID
		}
		other.sess.deliver(out)
	}
}

func (l *Lobby) bySide(player game.Player) *participant {
	return game.Select(player, l.host, l.joiner)
}

func (l *Lobby) other(player game.Player) *participant {
	return game.Select(player.Other(), l.host, l.joiner)
}

func (l *Lobby) touch() { l.lastActivity = time.Now() }

// close tears the lobby down: every still-attached session gets
// LOBBY_CLOSING plus a reset notice, and the registry forgets the id.
func (l *Lobby) close() {
	l.closeOnce.Do(func() {
		for _, p := range []*participant{l.host, l.joiner} {
			if p == nil {
				continue
			}
			p.sess.deliver(protocol.SrvLobbyClosing{})
			p.sess.postLobbyNotice(noticeLobbyClosed, l)
		}
		l.publishEvent(cache.EventLobbyClosed, nil)
		l.registry.lobbyClosed(l.gameID)
		close(l.done)
	})
}

func (l *Lobby) publishEvent(eventType string, payload map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cache.PublishGameEvent(ctx, cache.GameEventRecord{
		GameID:    l.gameID,
		EventType: eventType,
		Payload:   payload,
	})
}
