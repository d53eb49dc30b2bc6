// internal/ws/config.go

// Package ws contains the real-time session layer: the reliability
// adapter that numbers and retransmits logical messages over a
// reconnectable socket, the per-client session state machine, the
// game lobby and its registry, and the process-wide connection
// registry. Each of these runs as a single goroutine consuming a
// typed mailbox channel; state is confined to its owning goroutine
// and all cross-component communication is message passing.
package ws

import "time"

// Config carries every timing constant of the session layer. Tests
// shrink these to keep runs fast.
type Config struct {
	// Reliability layer.
	RetransmitInterval time.Duration // how often the resend scan runs
	RetransmitTimeout  time.Duration // age after which an unacked frame is resent
	RetryCap           int           // resends per frame before the peer is considered lost

	// Connection registry.
	HelloGrace        time.Duration // how long a fresh socket may withhold HELLO
	DisconnectGrace   time.Duration // how long an adapter survives without a socket
	SweepInterval     time.Duration // reap scan for expired adapters
	BroadcastInterval time.Duration // server-state broadcast batching

	// Lobby.
	ReadyTimeout      time.Duration // host must answer READY_PING within this
	StartDelay        time.Duration // pause between match found and GAME_START
	LobbyIdleTimeout  time.Duration // idle watchdog threshold
	IdleCheckInterval time.Duration // idle watchdog scan interval
}

// DefaultConfig returns the production timing constants.
func DefaultConfig() Config {
	return Config{
		RetransmitInterval: 250 * time.Millisecond,
		RetransmitTimeout:  700 * time.Millisecond,
		RetryCap:           16,
		HelloGrace:         5 * time.Second,
		DisconnectGrace:    30 * time.Second,
		SweepInterval:      time.Second,
		BroadcastInterval:  2 * time.Second,
		ReadyTimeout:       5 * time.Second,
		StartDelay:         2 * time.Second,
		LobbyIdleTimeout:   30 * time.Minute,
		IdleCheckInterval:  time.Minute,
	}
}
