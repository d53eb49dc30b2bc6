// internal/ws/adapter.go
package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/protocol"
)

// Adapter sits between a Session and the socket. It turns the
// at-least-once, possibly reordered wire stream into an ordered,
// at-most-once stream of logical messages in each direction, and it
// outlives the socket: while no socket is attached, outbound traffic
// queues and the connection registry reaps the adapter only after
// the configured grace.
type Adapter struct {
	cfg   Config
	token string
	log   *logrus.Entry

	session *Session // bound once before Start

	mailbox   chan adapterMsg
	done      chan struct{}
	closeOnce sync.Once

	// unix nanos of the moment the socket was lost, 0 while a socket
	// is attached. Read by the registry's reap sweep.
	disconnectedSince atomic.Int64

	// State below is owned by the run goroutine.
	conn    FrameWriter
	legacy  bool
	inNext  uint64 // next inbound id we will accept
	outNext uint64 // id assigned to the next outbound message
	unacked []*unackedFrame
	pending map[uint64]string // out-of-order inbound buffer
}

type unackedFrame struct {
	id      uint64
	payload string
	sentAt  time.Time
	retries int
}

type adapterMsg struct {
	kind   adapterMsgKind
	raw    string      // frameIn
	out    string      // sendOut payload
	conn   FrameWriter // attach / socketGone
	legacy bool        // attach
}

type adapterMsgKind int

const (
	amFrameIn adapterMsgKind = iota
	amSendOut
	amAttach
	amSocketGone
)

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

// NewAdapter creates an adapter for one connection token.
func NewAdapter(cfg Config, token string) *Adapter {
	a := &Adapter{
		cfg:     cfg,
		token:   token,
		log:     logrus.WithField("adapter", shortToken(token)),
		mailbox: make(chan adapterMsg, 256),
		done:    make(chan struct{}),
		inNext:  1,
		outNext: 1,
		pending: make(map[uint64]string),
	}
	a.disconnectedSince.Store(time.Now().UnixNano())
	return a
}

// BindSession wires the session the adapter emits into. Must be
// called before Start.
func (a *Adapter) BindSession(s *Session) { a.session = s }

// Token returns the connection token this adapter is keyed by.
func (a *Adapter) Token() string { return a.token }

// Start launches the adapter goroutine.
func (a *Adapter) Start() { go a.run() }

// Attach binds a (new) socket. Queued unacked frames are flushed to
// it immediately.
func (a *Adapter) Attach(w FrameWriter) {
	a.post(adapterMsg{kind: amAttach, conn: w})
}

// AttachLegacy binds a socket in compatibility mode: no framing, no
// retransmission, payloads pass straight through.
func (a *Adapter) AttachLegacy(w FrameWriter) {
	a.post(adapterMsg{kind: amAttach, conn: w, legacy: true})
}

// SocketClosed reports that a socket died. Ignored if a newer socket
// already took over.
func (a *Adapter) SocketClosed(w FrameWriter) {
	a.post(adapterMsg{kind: amSocketGone, conn: w})
}

// HandleFrame feeds one raw text frame from the socket.
func (a *Adapter) HandleFrame(raw string) {
	a.post(adapterMsg{kind: amFrameIn, raw: raw})
}

// Send queues one logical server message for delivery to the peer.
func (a *Adapter) Send(msg protocol.ServerMessage) {
	a.post(adapterMsg{kind: amSendOut, out: msg.Serialize()})
}

// Close tears the adapter down, closing any attached socket and
// cascading to the session.
func (a *Adapter) Close(reason string) {
	a.closeOnce.Do(func() {
		a.log.WithField("reason", reason).Debug("adapter closing")
		close(a.done)
	})
}

// DisconnectedFor returns how long the adapter has been without a
// socket, or 0 if one is attached.
func (a *Adapter) DisconnectedFor(now time.Time) time.Duration {
	since := a.disconnectedSince.Load()
	if since == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, since))
}

func (a *Adapter) post(m adapterMsg) {
	select {
	case a.mailbox <- m:
	case <-a.done:
	}
}

func (a *Adapter) run() {
	ticker := time.NewTicker(a.cfg.RetransmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			if a.conn != nil {
				a.conn.Close()
			}
			if a.session != nil {
				a.session.adapterClosed()
			}
			return
		case <-ticker.C:
			a.retransmit()
		case m := <-a.mailbox:
			switch m.kind {
			case amAttach:
				a.attach(m.conn, m.legacy)
			case amSocketGone:
				a.socketGone(m.conn)
			case amFrameIn:
				a.handleFrame(m.raw)
			case amSendOut:
				a.sendOut(m.out)
			}
		}
	}
}

func (a *Adapter) attach(w FrameWriter, legacy bool) {
	if a.conn != nil && a.conn != w {
		a.conn.Close()
	}
	a.conn = w
	a.legacy = legacy
	a.disconnectedSince.Store(0)

	// A reconnecting peer may have missed frames; push everything
	// still unacked without waiting for the resend scan.
	now := time.Now()
	for _, f := range a.unacked {
		a.writeFrame(protocol.MsgFrame{ID: f.id, Payload: f.payload}.Serialize())
		f.sentAt = now
	}
}

func (a *Adapter) socketGone(w FrameWriter) {
	if a.conn != w {
		return // a newer socket already took over
	}
	a.conn = nil
	a.disconnectedSince.Store(time.Now().UnixNano())
	if a.legacy {
		// No reliability layer to bridge the gap.
		a.Close("legacy socket lost")
	}
}

func (a *Adapter) handleFrame(raw string) {
	if a.legacy {
		a.emit(raw)
		return
	}

	frame, ok := protocol.ParseFrame(raw)
	if !ok {
		a.writeFrame(protocol.ErrFrame{Reason: "invalid frame"}.Serialize())
		return
	}

	switch f := frame.(type) {
	case protocol.MsgFrame:
		a.handleMsgFrame(f)
	case protocol.AckFrame:
		a.handleAck(f.ID)
	case protocol.ErrFrame:
		a.log.WithField("reason", f.Reason).Debug("peer diagnostic")
	}
}

func (a *Adapter) handleMsgFrame(f protocol.MsgFrame) {
	switch {
	case f.ID == a.inNext:
		a.writeFrame(protocol.AckFrame{ID: f.ID}.Serialize())
		a.inNext++
		a.emit(f.Payload)
		// Drain buffered successors that are now contiguous.
		for {
			payload, ok := a.pending[a.inNext]
			if !ok {
				break
			}
			delete(a.pending, a.inNext)
			a.writeFrame(protocol.AckFrame{ID: a.inNext}.Serialize())
			a.inNext++
			a.emit(payload)
		}
	case f.ID > a.inNext:
		// A gap: hold the frame and re-ack the last id we accepted
		// so the peer resends the missing segment.
		a.pending[f.ID] = f.Payload
		if a.inNext > 1 {
			a.writeFrame(protocol.AckFrame{ID: a.inNext - 1}.Serialize())
		}
	default:
		// Duplicate of something already processed; ack, don't emit.
		a.writeFrame(protocol.AckFrame{ID: f.ID}.Serialize())
	}
}

func (a *Adapter) handleAck(id uint64) {
	for i, f := range a.unacked {
		if f.id == id {
			a.unacked = append(a.unacked[:i], a.unacked[i+1:]...)
			return
		}
	}
}

// emit parses one logical payload and hands it to the session. A
// payload that acked fine but doesn't parse gets a diagnostic and is
// dropped.
func (a *Adapter) emit(payload string) {
	msg, ok := protocol.ParsePlayerMessage(payload)
	if !ok {
		if a.legacy {
			a.writeFrame(protocol.SrvError{}.Serialize())
		} else {
			a.writeFrame(protocol.ErrFrame{Reason: "unknown command"}.Serialize())
		}
		return
	}
	a.session.postPlayerMessage(msg)
}

func (a *Adapter) sendOut(payload string) {
	if a.legacy {
		a.writeFrame(payload)
		return
	}
	f := &unackedFrame{id: a.outNext, payload: payload, sentAt: time.Now()}
	a.outNext++
	a.unacked = append(a.unacked, f)
	a.writeFrame(protocol.MsgFrame{ID: f.id, Payload: f.payload}.Serialize())
}

func (a *Adapter) retransmit() {
	if a.legacy || len(a.unacked) == 0 {
		return
	}
	if a.conn == nil {
		// No socket to resend on; the disconnect grace, not the
		// retry cap, decides this adapter's fate.
		return
	}
	now := time.Now()
	for _, f := range a.unacked {
		if now.Sub(f.sentAt) < a.cfg.RetransmitTimeout {
			continue
		}
		f.retries++
		if f.retries > a.cfg.RetryCap {
			a.log.WithField("id", f.id).Warn("retry cap reached, peer lost")
			a.Close("retry cap reached")
			return
		}
		f.sentAt = now
		a.writeFrame(protocol.MsgFrame{ID: f.id, Payload: f.payload}.Serialize())
	}
}

func (a *Adapter) writeFrame(frame string) {
	if a.conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.conn.WriteFrame(ctx, frame); err != nil {
		a.log.WithError(err).Debug("socket write failed")
	}
}
