// internal/handlers/ws.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/middleware"
	"github.com/fourrow/server/internal/protocol"
	"github.com/fourrow/server/internal/ws"
)

const (
	// Socket-level keepalive. Invisible to the reliability layer.
	heartbeatInterval = 2 * time.Second
	heartbeatTimeout  = 8 * time.Second
)

// socketWriter adapts a coder/websocket connection to ws.FrameWriter.
// The adapter goroutine is the only writer of text frames; pings use
// the library's own control channel and don't conflict.
type socketWriter struct {
	c *websocket.Conn
}

func (s *socketWriter) WriteFrame(ctx context.Context, frame string) error {
	return s.c.Write(ctx, websocket.MessageText, []byte(frame))
}

func (s *socketWriter) Close() {
	s.c.Close(websocket.StatusNormalClosure, "adapter closed")
}

// GameWSHandler upgrades the connection and runs the HELLO handshake:
// protocol-aware clients get (or resume) a reliability adapter,
// clients that speak a recognisable command but no HELLO within
// cfg.HelloGrace get a legacy passthrough pair.
func GameWSHandler(logger *logrus.Logger, cfg ws.Config, registry *ws.ConnectionRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // adjust for production security
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go heartbeat(ctx, c)

		// All reads happen on one goroutine; frames flow through
		// this channel so the handshake can time out without
		// cancelling the read (which would kill the socket).
		frames := make(chan string, 16)
		readErr := make(chan error, 1)
		go func() {
			defer close(frames)
			for {
				typ, data, err := c.Read(ctx)
				if err != nil {
					readErr <- err
					return
				}
				if typ != websocket.MessageText {
					c.Close(websocket.StatusUnsupportedData, "text frames only")
					readErr <- nil
					return
				}
				frames <- string(data)
			}
		}()

		writer := &socketWriter{c: c}
		adapter := handshake(ctx, logger, registry, c, writer, frames, cfg.HelloGrace)
		if adapter != nil {
			for frame := range frames {
				adapter.HandleFrame(frame)
			}
			adapter.SocketClosed(writer)
		}

		var finalErr error
		select {
		case finalErr = <-readErr:
		default:
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, finalErr)
	}
}

// handshake classifies the client. HELLO starts (or resumes) the
// reliable protocol immediately. Bare recognisable commands are held
// back until the grace runs out without a HELLO; only then is the
// client committed to the legacy passthrough and the buffered
// commands replayed to it. Unrecognisable frames draw a diagnostic
// and are skipped. Returns nil when the socket died first.
func handshake(ctx context.Context, logger *logrus.Logger, registry *ws.ConnectionRegistry,
	c *websocket.Conn, writer *socketWriter, frames <-chan string, grace time.Duration) *ws.Adapter {

	timer := time.NewTimer(grace)
	defer timer.Stop()
	graceExpired := false
	var buffered []string

	for {
		var raw string
		var open bool
		if graceExpired {
			raw, open = <-frames
		} else {
			select {
			case raw, open = <-frames:
			case <-timer.C:
				graceExpired = true
				if len(buffered) > 0 {
					return startLegacy(logger, registry, c, writer, buffered)
				}
				continue
			}
		}
		if !open {
			return nil
		}

		if hello, ok := protocol.ParseHello(raw); ok {
			if hello.Version < protocol.MinVersion {
				writer.WriteFrame(ctx, protocol.HelloOutdated())
				c.Close(websocket.StatusPolicyViolation, "protocol version outdated")
				return nil
			}
			if hello.Token != "" {
				if adapter, found := registry.Resume(hello.Token); found {
					adapter.Attach(writer)
					writer.WriteFrame(ctx, protocol.HelloFound(hello.Token))
					return adapter
				}
				// Unknown token, fall through to a fresh connection.
			}
			token, adapter, ok := registry.Create(false)
			if !ok {
				c.Close(websocket.StatusTryAgainLater, "server shutting down")
				return nil
			}
			adapter.Attach(writer)
			writer.WriteFrame(ctx, protocol.HelloNew(token))
			return adapter
		}

		if _, ok := protocol.ParsePlayerMessage(raw); ok {
			if !graceExpired {
				// The client may still turn out to speak HELLO.
				buffered = append(buffered, raw)
				continue
			}
			return startLegacy(logger, registry, c, writer, []string{raw})
		}

		writer.WriteFrame(ctx, protocol.ErrFrame{Reason: "expected HELLO"}.Serialize())
	}
}

// startLegacy commits a non-HELLO client to the passthrough mode and
// replays the commands it sent while the handshake was still open.
func startLegacy(logger *logrus.Logger, registry *ws.ConnectionRegistry,
	c *websocket.Conn, writer *socketWriter, pending []string) *ws.Adapter {

	logger.Debug("legacy client detected")
	_, adapter, ok := registry.Create(true)
	if !ok {
		c.Close(websocket.StatusTryAgainLater, "server shutting down")
		return nil
	}
	adapter.AttachLegacy(writer)
	for _, raw := range pending {
		adapter.HandleFrame(raw)
	}
	return adapter
}

func heartbeat(ctx context.Context, c *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				c.Close(websocket.StatusGoingAway, "heartbeat failed")
				return
			}
		}
	}
}
