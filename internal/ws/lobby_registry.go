// internal/ws/lobby_registry.go
package ws

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/game"
	"github.com/fourrow/server/internal/protocol"
)

// LobbyRegistry is the matchmaker: it owns the single open public
// lobby slot and the table of private lobbies, mints game ids and
// routes battle requests. Closed lobby ids stay reserved so in-flight
// ids never collide with newly minted ones.
type LobbyRegistry struct {
	cfg     Config
	log     *logrus.Entry
	users   UserDirectory
	archive MessageArchive

	// conns is set once during bootstrap, before any traffic.
	conns *ConnectionRegistry

	mailbox   chan lobbyRegMsg
	done      chan struct{}
	closeOnce sync.Once

	// State below is owned by the run goroutine.
	open    *Lobby
	openID  string
	private map[string]*Lobby
	usedIDs map[string]bool // every id ever handed out and not yet recycled
}

type lobbyRegMsg struct {
	kind      lobbyRegMsgKind
	sess      *Session
	uid       string
	public    bool
	gameID    string
	target    *Session
	targetUID string
	reply     chan lobbyResult
}

type lobbyRegMsgKind int

const (
	lrNewLobby lobbyRegMsgKind = iota
	lrJoinLobby
	lrBattleRequest
	lrLobbyClosed
)

// lobbyResult answers the ask-style calls from sessions.
type lobbyResult struct {
	lobby   *Lobby
	gameID  string
	waiting bool // matched into an existing lobby as player two
	ok      bool
}

// NewLobbyRegistry creates the matchmaker actor.
func NewLobbyRegistry(cfg Config, users UserDirectory, archive MessageArchive) *LobbyRegistry {
	return &LobbyRegistry{
		cfg:     cfg,
		log:     logrus.WithField("component", "lobby_registry"),
		users:   users,
		archive: archive,
		mailbox: make(chan lobbyRegMsg, 64),
		done:    make(chan struct{}),
		private: make(map[string]*Lobby),
		usedIDs: make(map[string]bool),
	}
}

// BindConnections wires the connection registry used for the
// player-in-queue broadcast. Must be called before Start.
func (r *LobbyRegistry) BindConnections(c *ConnectionRegistry) { r.conns = c }

// Start launches the registry goroutine.
func (r *LobbyRegistry) Start() { go r.run() }

// Stop shuts the registry down.
func (r *LobbyRegistry) Stop() {
	r.closeOnce.Do(func() { close(r.done) })
}

// newLobby opens a lobby or matches into the open public one.
func (r *LobbyRegistry) newLobby(s *Session, uid string, public bool) lobbyResult {
	return r.ask(lobbyRegMsg{kind: lrNewLobby, sess: s, uid: uid, public: public})
}

// joinLobby joins a private lobby by id.
func (r *LobbyRegistry) joinLobby(gameID string, s *Session, uid string) (*Lobby, bool) {
	res := r.ask(lobbyRegMsg{kind: lrJoinLobby, gameID: gameID, sess: s, uid: uid})
	return res.lobby, res.ok
}

// battleRequest creates a private lobby hosted by the sender and
// notifies the target session.
func (r *LobbyRegistry) battleRequest(sender *Session, senderUID string, target *Session, targetUID string) lobbyResult {
	return r.ask(lobbyRegMsg{kind: lrBattleRequest, sess: sender, uid: senderUID, target: target, targetUID: targetUID})
}

// lobbyClosed recycles a lobby id; called by a dying lobby.
func (r *LobbyRegistry) lobbyClosed(gameID string) {
	select {
	case r.mailbox <- lobbyRegMsg{kind: lrLobbyClosed, gameID: gameID}:
	case <-r.done:
	}
}

func (r *LobbyRegistry) ask(m lobbyRegMsg) lobbyResult {
	m.reply = make(chan lobbyResult, 1)
	select {
	case r.mailbox <- m:
	case <-r.done:
		return lobbyResult{}
	}
	select {
	case res := <-m.reply:
		return res
	case <-r.done:
		return lobbyResult{}
	}
}

func (r *LobbyRegistry) run() {
	for {
		select {
		case <-r.done:
			return
		case m := <-r.mailbox:
			switch m.kind {
			case lrNewLobby:
				m.reply <- r.handleNewLobby(m.sess, m.uid, m.public)
			case lrJoinLobby:
				m.reply <- r.handleJoinLobby(m.gameID, m.sess, m.uid)
			case lrBattleRequest:
				m.reply <- r.handleBattleRequest(m.sess, m.uid, m.target, m.targetUID)
			case lrLobbyClosed:
				r.handleLobbyClosed(m.gameID)
			}
		}
	}
}

func (r *LobbyRegistry) handleNewLobby(s *Session, uid string, public bool) lobbyResult {
	if public && r.open != nil {
		// Second public player: match with the waiting host.
		lobby := r.open
		r.open = nil
		r.openID = ""
		r.broadcastQueueState()
		lobby.join(s, uid)
		return lobbyResult{lobby: lobby, waiting: true, ok: true}
	}

	gameID := r.mintGameID()
	lobby := newLobby(r.cfg, gameID, public, s, uid, r.users, r.archive, r)
	lobby.start()

	if public {
		r.open = lobby
		r.openID = gameID
		r.broadcastQueueState()
	} else {
		r.private[gameID] = lobby
	}
	return lobbyResult{lobby: lobby, gameID: gameID, ok: true}
}

func (r *LobbyRegistry) handleJoinLobby(gameID string, s *Session, uid string) lobbyResult {
	lobby, ok := r.private[gameID]
	if !ok {
		return lobbyResult{}
	}
	lobby.join(s, uid)
	return lobbyResult{lobby: lobby, waiting: true, ok: true}
}

func (r *LobbyRegistry) handleBattleRequest(sender *Session, senderUID string, target *Session, targetUID string) lobbyResult {
	gameID := r.mintGameID()
	lobby := newLobby(r.cfg, gameID, false, sender, senderUID, r.users, r.archive, r)
	lobby.start()
	r.private[gameID] = lobby

	target.deliver(protocol.SrvBattleRequest{FromUID: senderUID, GameID: gameID})
	return lobbyResult{lobby: lobby, gameID: gameID, ok: true}
}

func (r *LobbyRegistry) handleLobbyClosed(gameID string) {
	delete(r.private, gameID)
	delete(r.usedIDs, gameID)
	if r.openID == gameID {
		r.open = nil
		r.openID = ""
		r.broadcastQueueState()
	}
}

func (r *LobbyRegistry) mintGameID() string {
	id := game.GenerateGameID(func(candidate string) bool {
		return r.usedIDs[candidate]
	})
	r.usedIDs[id] = true
	return id
}

func (r *LobbyRegistry) broadcastQueueState() {
	if r.conns != nil {
		r.conns.setQueueState(r.open != nil)
	}
}
