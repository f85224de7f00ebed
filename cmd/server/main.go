package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aklilu27/audiorooms/config"
	"github.com/Aklilu27/audiorooms/internal/notify"
	"github.com/Aklilu27/audiorooms/internal/postgres"
	"github.com/Aklilu27/audiorooms/internal/presence"
	"github.com/Aklilu27/audiorooms/internal/service"
	httpx "github.com/Aklilu27/audiorooms/internal/transport/http"
	"github.com/Aklilu27/audiorooms/internal/transport/ws"
	"github.com/Aklilu27/audiorooms/pkg/auth"
	"github.com/Aklilu27/audiorooms/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting audiorooms",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	// --- repos & services ---
	roomRepo := postgres.NewRoomRepository(db.Pool)
	userRepo := postgres.NewUserRepository(db.Pool)
	roomSvc := service.NewRoomService(roomRepo)
	userSvc := service.NewUserService(userRepo)

	// --- auth ---
	tokens := auth.New(cfg.Auth.JWTSecret, cfg.TokenTTL())

	// --- presence & signaling ---
	registry := presence.NewRegistry()
	gate := presence.NewAccessGate()

	var notifier ws.Notifier
	if cfg.Redis.Addr != "" {
		pub, err := notify.NewPublisher(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer pub.Close()
		notifier = pub
	}

	wsServer := ws.NewServer(registry, gate, roomSvc, notifier, cfg.PingInterval())

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc, gate, cfg.WebRTC.ICEServers)
	authHandler := httpx.NewAuthHandler(userSvc, tokens)
	router := httpx.NewRouter(handler, authHandler, tokens, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
