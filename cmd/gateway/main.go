package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/internal/api"
	"github.com/hashpoint/go-wallet-gateway/internal/backend"
	"github.com/hashpoint/go-wallet-gateway/internal/server"
	"github.com/hashpoint/go-wallet-gateway/internal/service"
	"github.com/hashpoint/go-wallet-gateway/internal/session"
	"github.com/hashpoint/go-wallet-gateway/pkg/config"
	"github.com/hashpoint/go-wallet-gateway/pkg/logging"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	version    = "dev"
	buildTime  = "unknown"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Wallet Gateway",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("environment", cfg.Environment),
	)

	// Identity storage
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := backend.New(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize storage backend", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	err = store.Ping(ctx)
	cancel()
	if err != nil {
		logger.Fatal("Failed to ping storage", zap.Error(err))
	}
	logger.Info("Storage backend initialized", zap.String("type", cfg.Storage.Type))

	// Server-side sessions
	sessions, err := newSessionStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize session store", zap.Error(err))
	}
	defer func() { _ = sessions.Close() }()

	resolver := session.NewResolver(store)
	ttl := time.Duration(cfg.Session.TTLDays) * 24 * time.Hour
	bridge := session.NewBridge(sessions, resolver, ttl, logger)

	services := service.NewServices(store, logger)
	handlers := api.NewHandlers(services, bridge, cfg, logger)

	srv := server.New(cfg, logger)
	srv.AddProvider(handlers)
	if err := srv.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	// Periodic purge of expired sessions.
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go sessionCleanupLoop(cleanupCtx, sessions, logger)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}

// newSessionStore creates the configured session store
func newSessionStore(cfg *config.Config, logger *zap.Logger) (session.Store, error) {
	switch cfg.Session.Store.Type {
	case "redis":
		return session.NewRedisStore(cfg.Session.Store.Redis, logger)
	default:
		return session.NewMemoryStore(logger), nil
	}
}

// sessionCleanupLoop purges expired sessions until ctx is cancelled
func sessionCleanupLoop(ctx context.Context, store session.Store, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped, err := store.Cleanup(ctx)
			if err != nil {
				logger.Warn("Session cleanup failed", zap.Error(err))
				continue
			}
			if dropped > 0 {
				logger.Info("Expired sessions purged", zap.Int64("count", dropped))
			}
		}
	}
}
