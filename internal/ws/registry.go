// internal/ws/registry.go
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/models"
	"github.com/fourrow/server/internal/protocol"
)

// ConnectionRegistry owns the process-wide token -> connection table.
// It spawns session/adapter pairs, re-attaches reconnecting sockets,
// reaps adapters whose disconnect grace expired, batches the periodic
// server-state broadcast and fans out global chat.
type ConnectionRegistry struct {
	cfg     Config
	log     *logrus.Entry
	users   UserDirectory
	archive MessageArchive
	lobbies *LobbyRegistry

	mailbox   chan registryMsg
	done      chan struct{}
	closeOnce sync.Once

	// State below is owned by the run goroutine.
	entries  map[string]*connEntry
	queueHot bool // a public lobby is waiting for an opponent
	dirty    bool // broadcast pending
}

type connEntry struct {
	token   string
	adapter *Adapter
	session *Session
	user    *models.UserInfo
}

type registryMsg struct {
	kind     registryMsgKind
	legacy   bool
	token    string
	writer   FrameWriter
	sess     *Session
	user     *models.UserInfo
	fromUID  *string
	text     string
	queueHot bool
	reply    chan connectResult
}

type registryMsgKind int

const (
	rmCreate registryMsgKind = iota
	rmResume
	rmRemove
	rmSetUser
	rmSetQueue
	rmGlobalChat
	rmGlobalChatRead
)

// connectResult answers Create and Resume.
type connectResult struct {
	token   string
	adapter *Adapter
	ok      bool
}

// NewConnectionRegistry creates the registry actor.
func NewConnectionRegistry(cfg Config, users UserDirectory, archive MessageArchive, lobbies *LobbyRegistry) *ConnectionRegistry {
	return &ConnectionRegistry{
		cfg:     cfg,
		log:     logrus.WithField("component", "conn_registry"),
		users:   users,
		archive: archive,
		lobbies: lobbies,
		mailbox: make(chan registryMsg, 256),
		done:    make(chan struct{}),
		entries: make(map[string]*connEntry),
	}
}

// Start launches the registry goroutine.
func (r *ConnectionRegistry) Start() { go r.run() }

// Stop closes the registry and every adapter it still tracks.
func (r *ConnectionRegistry) Stop() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Create mints a token and spawns a fresh session/adapter pair. The
// socket is attached by the caller afterwards.
func (r *ConnectionRegistry) Create(legacy bool) (string, *Adapter, bool) {
	res := r.ask(registryMsg{kind: rmCreate, legacy: legacy})
	return res.token, res.adapter, res.ok
}

// Resume re-attaches an existing token. Returns false when the token
// is unknown (expired or never issued); the caller then creates a
// fresh connection instead.
func (r *ConnectionRegistry) Resume(token string) (*Adapter, bool) {
	res := r.ask(registryMsg{kind: rmResume, token: token})
	return res.adapter, res.ok
}

// remove drops an entry; called by a session tearing down.
func (r *ConnectionRegistry) remove(token string) {
	r.post(registryMsg{kind: rmRemove, token: token})
}

// setUser records login state on the entry (for presence counting).
func (r *ConnectionRegistry) setUser(token string, user *models.UserInfo) {
	r.post(registryMsg{kind: rmSetUser, token: token, user: user})
}

// setQueueState is called by the lobby registry whenever the open
// public slot changes.
func (r *ConnectionRegistry) setQueueState(hot bool) {
	r.post(registryMsg{kind: rmSetQueue, queueHot: hot})
}

// globalChat archives a global-thread message and fans it out to
// every session except the sender.
func (r *ConnectionRegistry) globalChat(from *Session, fromUID *string, text string) {
	r.post(registryMsg{kind: rmGlobalChat, sess: from, fromUID: fromUID, text: text})
}

// globalChatRead fans out a global read marker.
func (r *ConnectionRegistry) globalChatRead(from *Session) {
	r.post(registryMsg{kind: rmGlobalChatRead, sess: from})
}

func (r *ConnectionRegistry) post(m registryMsg) {
	select {
	case r.mailbox <- m:
	case <-r.done:
	}
}

func (r *ConnectionRegistry) ask(m registryMsg) connectResult {
	m.reply = make(chan connectResult, 1)
	select {
	case r.mailbox <- m:
	case <-r.done:
		return connectResult{}
	}
	select {
	case res := <-m.reply:
		return res
	case <-r.done:
		return connectResult{}
	}
}

func (r *ConnectionRegistry) run() {
	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()
	broadcast := time.NewTicker(r.cfg.BroadcastInterval)
	defer broadcast.Stop()

	for {
		select {
		case <-r.done:
			for _, e := range r.entries {
				e.adapter.Close("server shutdown")
			}
			return
		case <-sweep.C:
			r.reapExpired()
		case <-broadcast.C:
			r.broadcastState()
		case m := <-r.mailbox:
			r.handle(m)
		}
	}
}

func (r *ConnectionRegistry) handle(m registryMsg) {
	switch m.kind {
	case rmCreate:
		m.reply <- r.handleCreate(m.legacy)
	case rmResume:
		m.reply <- r.handleResume(m.token)
	case rmRemove:
		if _, ok := r.entries[m.token]; ok {
			delete(r.entries, m.token)
			r.dirty = true
		}
	case rmSetUser:
		if e, ok := r.entries[m.token]; ok {
			e.user = m.user
		}
	case rmSetQueue:
		if r.queueHot != m.queueHot {
			r.queueHot = m.queueHot
			r.dirty = true
		}
	case rmGlobalChat:
		r.handleGlobalChat(m.sess, m.fromUID, m.text)
	case rmGlobalChatRead:
		r.fanOut(m.sess, protocol.SrvChatRead{ThreadID: models.GlobalChatThreadID})
	}
}

func (r *ConnectionRegistry) handleCreate(legacy bool) connectResult {
	token := newSessionToken()
	adapter := NewAdapter(r.cfg, token)
	session := newSession(r.cfg, token, legacy, adapter, r, r.lobbies, r.users)
	adapter.BindSession(session)
	adapter.Start()
	session.start()

	r.entries[token] = &connEntry{token: token, adapter: adapter, session: session}
	r.dirty = true
	r.log.WithField("token", shortToken(token)).Debug("connection created")
	return connectResult{token: token, adapter: adapter, ok: true}
}

func (r *ConnectionRegistry) handleResume(token string) connectResult {
	e, ok := r.entries[token]
	if !ok {
		return connectResult{}
	}
	return connectResult{token: token, adapter: e.adapter, ok: true}
}

func (r *ConnectionRegistry) reapExpired() {
	now := time.Now()
	for token, e := range r.entries {
		if d := e.adapter.DisconnectedFor(now); d >= r.cfg.DisconnectGrace {
			r.log.WithField("token", shortToken(token)).Debug("disconnect grace expired")
			e.adapter.Close("disconnect grace expired")
			delete(r.entries, token)
			r.dirty = true
		}
	}
}

func (r *ConnectionRegistry) broadcastState() {
	if !r.dirty {
		return
	}
	r.dirty = false
	state := protocol.SrvServerState{Connections: len(r.entries), PlayerWaiting: r.queueHot}
	for _, e := range r.entries {
		e.session.deliver(state)
	}
}

func (r *ConnectionRegistry) handleGlobalChat(from *Session, fromUID *string, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := r.archive.Append(ctx, models.GlobalChatThreadID, fromUID, text)
	if err != nil {
		r.log.WithError(err).Warn("failed to archive global chat")
		from.deliver(protocol.SrvError{Kind: protocol.ErrInternal})
		return
	}

	out := protocol.SrvChatMessage{
		ThreadID:  msg.ThreadID,
		Index:     msg.Index,
		Timestamp: msg.Timestamp,
		Text:      text,
	}
	if fromUID != nil {
		out.FromUID = *fromUID
	}
	r.fanOut(from, out)
}

func (r *ConnectionRegistry) fanOut(except *Session, msg protocol.ServerMessage) {
	for _, e := range r.entries {
		if e.session == except {
			continue
		}
		e.session.deliver(msg)
	}
}
