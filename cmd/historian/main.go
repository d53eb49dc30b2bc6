// cmd/historian/main.go is an asynchronous sidecar that pops game
// event records from the Redis queue and persists them to the
// game_events table in batches.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/cache"
	"github.com/fourrow/server/internal/config"
	"github.com/fourrow/server/internal/database"
)

// Historian drains the Redis event queue into PostgreSQL.
type Historian struct {
	rdb        *redis.Client
	queueName  string
	batchSize  int
	flushDelay time.Duration

	batchMu sync.Mutex
	batch   []cache.GameEventRecord
}

func newHistorian(rdb *redis.Client) *Historian {
	return &Historian{
		rdb:        rdb,
		queueName:  cache.DefaultQueueName,
		batchSize:  20,
		flushDelay: 500 * time.Millisecond,
		batch:      make([]cache.GameEventRecord, 0, 20),
	}
}

func (h *Historian) run(ctx context.Context) {
	ticker := time.NewTicker(h.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.flush()
			return
		case <-ticker.C:
			h.flush()
		default:
			res, err := h.rdb.BLPop(ctx, 3*time.Second, h.queueName).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					logrus.WithError(err).Error("BLPop failed")
				}
				continue
			}
			if len(res) < 2 {
				continue
			}
			var record cache.GameEventRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				logrus.WithError(err).Warn("invalid event record")
				continue
			}
			h.append(record)
		}
	}
}

func (h *Historian) append(record cache.GameEventRecord) {
	h.batchMu.Lock()
	defer h.batchMu.Unlock()
	h.batch = append(h.batch, record)
	if len(h.batch) >= h.batchSize {
		h.flushLocked()
	}
}

func (h *Historian) flush() {
	h.batchMu.Lock()
	defer h.batchMu.Unlock()
	h.flushLocked()
}

func (h *Historian) flushLocked() {
	if len(h.batch) == 0 {
		return
	}
	batch := make([]cache.GameEventRecord, len(h.batch))
	copy(batch, h.batch)
	h.batch = h.batch[:0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `INSERT INTO game_events (event_type, payload, created_at)
		      VALUES ($1, $2, to_timestamp($3))`
		for _, rec := range batch {
			payload, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, q, rec.EventType, payload, rec.Timestamp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).Error("failed to flush event batch")
		return
	}
	logrus.Infof("flushed %d events", len(batch))
}

func main() {
	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(envOr("CONFIG_FILE", "server.yaml"))
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required for the historian")
	}

	if err := database.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	if err := database.Connect(ctx, cfg.Database.DSN()); err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer database.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatalf("redis: %v", err)
	}

	logger.Info("historian started")
	newHistorian(rdb).run(ctx)
	logger.Info("historian shutdown complete")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
