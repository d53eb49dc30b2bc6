// internal/ws/ws_test.go
package ws

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fourrow/server/internal/models"
	"github.com/fourrow/server/internal/protocol"
)

// testConfig shrinks every timer far enough that the state machines
// can be driven to completion in a few hundred milliseconds. The
// retry cap is effectively disabled so slow assertions don't kill
// adapters mid-test.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetransmitInterval = 20 * time.Millisecond
	cfg.RetransmitTimeout = 400 * time.Millisecond
	cfg.RetryCap = 1 << 30
	cfg.DisconnectGrace = time.Hour
	cfg.SweepInterval = 25 * time.Millisecond
	cfg.BroadcastInterval = 25 * time.Millisecond
	cfg.ReadyTimeout = 500 * time.Millisecond
	cfg.StartDelay = 30 * time.Millisecond
	cfg.LobbyIdleTimeout = time.Hour
	cfg.IdleCheckInterval = time.Hour
	return cfg
}

// fakeWriter collects every frame the adapter writes.
type fakeWriter struct {
	mu     sync.Mutex
	frames []string
	closed bool
}

func (w *fakeWriter) WriteFrame(_ context.Context, frame string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, frame)
	return nil
}

func (w *fakeWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *fakeWriter) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.frames))
	copy(out, w.frames)
	return out
}

func (w *fakeWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// fakeDirectory is an in-memory UserDirectory.
type fakeDirectory struct {
	mu      sync.Mutex
	tokens  map[string]models.UserInfo
	playing map[string]*Session
	games   [][2]string // winner uid, loser uid
	authErr error       // simulated backend outage
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		tokens:  make(map[string]models.UserInfo),
		playing: make(map[string]*Session),
	}
}

func (d *fakeDirectory) addUser(token, uid, username string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens[token] = models.UserInfo{ID: uid, Username: username}
}

func (d *fakeDirectory) failAuth(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authErr = err
}

func (d *fakeDirectory) Authenticate(_ context.Context, token string) (*models.UserInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.authErr != nil {
		return nil, d.authErr
	}
	info, ok := d.tokens[token]
	if !ok {
		return nil, ErrUnknownUser
	}
	out := info
	return &out, nil
}

func (d *fakeDirectory) SetPlaying(uid string, s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing[uid] = s
}

func (d *fakeDirectory) ClearPlaying(uid string, s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing[uid] == s {
		delete(d.playing, uid)
	}
}

func (d *fakeDirectory) ResolveBattleTarget(uid string) (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.playing[uid]
	return s, ok
}

func (d *fakeDirectory) RecordPlayedGame(_ context.Context, winnerUID, loserUID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.games = append(d.games, [2]string{winnerUID, loserUID})
	return nil
}

func (d *fakeDirectory) recorded() [][2]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][2]string, len(d.games))
	copy(out, d.games)
	return out
}

// fakeArchive is an in-memory MessageArchive.
type fakeArchive struct {
	mu   sync.Mutex
	next map[string]int64
	msgs []models.ChatMessage
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{next: make(map[string]int64)}
}

func (a *fakeArchive) Append(_ context.Context, threadID string, fromUID *string, text string) (*models.ChatMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next[threadID]++
	msg := models.ChatMessage{
		ThreadID:  threadID,
		Index:     a.next[threadID],
		SenderID:  fromUID,
		Content:   text,
		Timestamp: time.Now().Unix(),
	}
	a.msgs = append(a.msgs, msg)
	return &msg, nil
}

func (a *fakeArchive) byThread(threadID string) []models.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range a.msgs {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	return out
}

// testEnv is a fully wired registry pair over fakes.
type testEnv struct {
	cfg     Config
	dir     *fakeDirectory
	archive *fakeArchive
	lobbies *LobbyRegistry
	conns   *ConnectionRegistry
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	dir := newFakeDirectory()
	archive := newFakeArchive()
	lobbies := NewLobbyRegistry(cfg, dir, archive)
	conns := NewConnectionRegistry(cfg, dir, archive, lobbies)
	lobbies.BindConnections(conns)
	lobbies.Start()
	conns.Start()
	t.Cleanup(func() {
		conns.Stop()
		lobbies.Stop()
	})
	return &testEnv{cfg: cfg, dir: dir, archive: archive, lobbies: lobbies, conns: conns}
}

// client drives one connection the way a protocol-aware peer would:
// outbound frames get sequential ids, inbound MSG frames are acked
// while waiting so the retransmit loop stays quiet.
type client struct {
	t       *testing.T
	env     *testEnv
	token   string
	adapter *Adapter

	mu     sync.Mutex
	writer *fakeWriter
	nextID uint64
	acked  map[uint64]bool
}

func (e *testEnv) connect(t *testing.T) *client {
	t.Helper()
	token, adapter, ok := e.conns.Create(false)
	require.True(t, ok)
	w := &fakeWriter{}
	adapter.Attach(w)
	return &client{t: t, env: e, token: token, adapter: adapter, writer: w, nextID: 1, acked: make(map[uint64]bool)}
}

func (c *client) send(payload string) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()
	c.adapter.HandleFrame(protocol.MsgFrame{ID: id, Payload: payload}.Serialize())
}

func (c *client) currentWriter() *fakeWriter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writer
}

// reattach simulates a reconnect: a fresh socket resumed onto the
// same adapter. The old frame history is discarded with the old
// writer.
func (c *client) reattach(t *testing.T) {
	t.Helper()
	adapter, ok := c.env.conns.Resume(c.token)
	require.True(t, ok)
	require.Same(t, c.adapter, adapter)
	w := &fakeWriter{}
	adapter.Attach(w)
	c.mu.Lock()
	c.writer = w
	c.mu.Unlock()
}

// ackAll acks every server MSG frame seen so far.
func (c *client) ackAll() {
	w := c.currentWriter()
	for _, raw := range w.snapshot() {
		f, ok := protocol.ParseFrame(raw)
		if !ok {
			continue
		}
		m, ok := f.(protocol.MsgFrame)
		if !ok {
			continue
		}
		c.mu.Lock()
		seen := c.acked[m.ID]
		c.acked[m.ID] = true
		c.mu.Unlock()
		if !seen {
			c.adapter.HandleFrame(protocol.AckFrame{ID: m.ID}.Serialize())
		}
	}
}

// payloads returns the logical server messages received so far, in id
// order, retransmissions collapsed.
func (c *client) payloads() []string {
	byID := make(map[uint64]string)
	var order []uint64
	for _, raw := range c.currentWriter().snapshot() {
		f, ok := protocol.ParseFrame(raw)
		if !ok {
			continue
		}
		if m, ok := f.(protocol.MsgFrame); ok {
			if _, dup := byID[m.ID]; !dup {
				byID[m.ID] = m.Payload
				order = append(order, m.ID)
			}
		}
	}
	out := make([]string, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

func countPrefix(payloads []string, prefix string) int {
	n := 0
	for _, p := range payloads {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

// waitPayloadN blocks until the nth (1-based) message with the prefix
// arrives and returns it.
func (c *client) waitPayloadN(prefix string, n int) string {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.ackAll()
		seen := 0
		for _, p := range c.payloads() {
			if strings.HasPrefix(p, prefix) {
				seen++
				if seen == n {
					return p
				}
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.t.Fatalf("timed out waiting for message %d with prefix %q, got %v", n, prefix, c.payloads())
	return ""
}

func (c *client) waitPayload(prefix string) string {
	c.t.Helper()
	return c.waitPayloadN(prefix, 1)
}

// expectNoPayload asserts that no message with the prefix arrives
// within the window.
func (c *client) expectNoPayload(prefix string, window time.Duration) {
	c.t.Helper()
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		c.ackAll()
		if countPrefix(c.payloads(), prefix) > 0 {
			c.t.Fatalf("unexpected message with prefix %q: %v", prefix, c.payloads())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// rawCount counts raw frames equal to s, retransmissions included.
func (c *client) rawCount(s string) int {
	n := 0
	for _, raw := range c.currentWriter().snapshot() {
		if raw == s {
			n++
		}
	}
	return n
}

func (c *client) waitRawCount(s string, n int) {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.rawCount(s) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.t.Fatalf("timed out waiting for %d copies of %q, frames: %v", n, s, c.currentWriter().snapshot())
}

// legacyClient drives a connection in passthrough mode, the way a
// pre-handshake client would: bare payloads in both directions.
type legacyClient struct {
	t       *testing.T
	adapter *Adapter
	writer  *fakeWriter
}

func (e *testEnv) connectLegacy(t *testing.T) *legacyClient {
	t.Helper()
	_, adapter, ok := e.conns.Create(true)
	require.True(t, ok)
	w := &fakeWriter{}
	adapter.AttachLegacy(w)
	return &legacyClient{t: t, adapter: adapter, writer: w}
}

func (c *legacyClient) send(payload string) { c.adapter.HandleFrame(payload) }

// waitRaw blocks until a bare frame with the prefix arrives.
func (c *legacyClient) waitRaw(prefix string) string {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, raw := range c.writer.snapshot() {
			if strings.HasPrefix(raw, prefix) {
				return raw
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.t.Fatalf("timed out waiting for raw frame with prefix %q, got %v", prefix, c.writer.snapshot())
	return ""
}

// startMatch pairs two clients through worldwide matchmaking and runs
// the ready handshake. Returns the two clients ordered mover first.
func startMatch(t *testing.T, env *testEnv) (mover, other *client) {
	t.Helper()
	host := env.connect(t)
	joiner := env.connect(t)

	host.send("REQ_WW")
	host.waitPayload("OKAY")

	joiner.send("REQ_WW")
	joiner.waitPayload("OKAY")

	host.waitPayload("OPP_JOINED")
	host.waitPayload("READY_PING")
	host.send("READY_PONG")

	hostStart := host.waitPayload("GAME_START:")
	joiner.waitPayload("GAME_START:")

	if hostStart == "GAME_START:YOU" {
		return host, joiner
	}
	return joiner, host
}

// playVerticalWin has the mover stack column 0 while the other side
// wastes moves in column 1. Each move waits for the opponent's relay
// so turn order is never raced.
func playVerticalWin(t *testing.T, mover, other *client) {
	t.Helper()
	for i := 1; i <= 3; i++ {
		mover.send("PC:0")
		other.waitPayloadN("PC:0", i)
		other.send("PC:1")
		mover.waitPayloadN("PC:1", i)
	}
	mover.send("PC:0")
	other.waitPayloadN("PC:0", 4)
}
