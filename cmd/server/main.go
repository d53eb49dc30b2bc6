// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fourrow/server/internal/auth"
	"github.com/fourrow/server/internal/cache"
	"github.com/fourrow/server/internal/chat"
	"github.com/fourrow/server/internal/config"
	"github.com/fourrow/server/internal/database"
	"github.com/fourrow/server/internal/handlers"
	"github.com/fourrow/server/internal/middleware"
	"github.com/fourrow/server/internal/users"
	"github.com/fourrow/server/internal/ws"
)

func main() {
	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := run(logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(envOr("CONFIG_FILE", "server.yaml"))
	if err != nil {
		return err
	}

	ttl, err := tokenTTL(cfg.TokenExpire)
	if err != nil {
		return fmt.Errorf("invalid token_expire: %w", err)
	}
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		err = auth.InitFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, ttl)
	} else {
		err = auth.Init(ttl)
	}
	if err != nil {
		return err
	}

	if err := database.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return err
	}
	if err := database.Connect(ctx, cfg.Database.DSN()); err != nil {
		return err
	}
	defer database.Close()

	if cfg.RedisAddr != "" {
		if err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB); err != nil {
			logger.Warnf("redis unavailable, event log disabled: %v", err)
		}
	}

	directory := users.NewDirectory()
	archive := chat.NewArchive()

	wsCfg := ws.DefaultConfig()
	lobbies := ws.NewLobbyRegistry(wsCfg, directory, archive)
	registry := ws.NewConnectionRegistry(wsCfg, directory, archive, lobbies)
	lobbies.BindConnections(registry)
	lobbies.Start()
	registry.Start()
	defer lobbies.Stop()
	defer registry.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /user/create", handlers.UserCreateHandler)
	mux.HandleFunc("POST /user/login", handlers.UserLoginHandler)
	mux.HandleFunc("GET /user/me", handlers.UserMeHandler)
	mux.HandleFunc("GET /user/search", handlers.UserSearchHandler)
	mux.HandleFunc("GET /user/games", handlers.UserGamesHandler)
	mux.HandleFunc("POST /friends/add", handlers.FriendAddHandler)
	mux.HandleFunc("POST /friends/accept", handlers.FriendAcceptHandler)
	mux.HandleFunc("GET /friends/list", handlers.FriendListHandler)
	mux.HandleFunc("POST /friends/remove", handlers.FriendRemoveHandler)
	mux.Handle("GET /chat/", handlers.ChatHistoryHandler(archive))
	mux.Handle("POST /chat/", handlers.ChatPostHandler(archive))
	mux.Handle("GET /game/ws", handlers.GameWSHandler(logger, wsCfg, registry))

	handler := middleware.Recover(logger)(middleware.Log(logger)(mux))
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler: handler,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func tokenTTL(s string) (time.Duration, error) {
	if s == "" || s == "0" || s == "never" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
