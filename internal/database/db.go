package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

var DB *pgxpool.Pool

// Connect opens the shared pgx pool and verifies the connection.
func Connect(ctx context.Context, dsn string) error {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return err
	}

	DB, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := DB.Ping(pingCtx); err != nil {
		DB.Close()
		return err
	}

	logrus.Info("connected to database")
	return nil
}

// Close releases the shared pool.
func Close() {
	if DB != nil {
		DB.Close()
	}
}
