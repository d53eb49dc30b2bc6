// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Rdb is the global Redis client. It stays nil when Redis is not
// configured; publishing then becomes a no-op so the game server can
// run without the event log.
var Rdb *redis.Client

// DefaultQueueName is the Redis list holding game event records until
// the historian drains them.
var DefaultQueueName = "fourrow_events"

// GameEventRecord is one lobby lifecycle event destined for the
// historian.
type GameEventRecord struct {
	GameID    string                 `json:"game_id"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Event types published by the lobby layer.
const (
	EventLobbyCreated = "lobby_created"
	EventPlayerJoined = "player_joined"
	EventGameStarted  = "game_started"
	EventGameOver     = "game_over"
	EventLobbyClosed  = "lobby_closed"
)

// ConnectRedis initializes the global client and verifies the
// connection.
func ConnectRedis(addr string, db int) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		Rdb = nil
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// PublishGameEvent pushes one event record onto the queue. Errors are
// logged, not propagated: the event log is best-effort and must never
// stall a lobby.
func PublishGameEvent(ctx context.Context, record GameEventRecord) {
	if Rdb == nil {
		return
	}
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(record)
	if err != nil {
		logrus.Warnf("failed to marshal game event: %v", err)
		return
	}
	if err := Rdb.RPush(ctx, DefaultQueueName, data).Err(); err != nil {
		logrus.Warnf("failed to RPush game event: %v", err)
	}
}
