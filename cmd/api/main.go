package main

import (
	"context"
	"crypto/rsa"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/celltrack/internal/api/auth"
	"github.com/ETAnderson/celltrack/internal/api/handlers"
	"github.com/ETAnderson/celltrack/internal/api/middleware"
	"github.com/ETAnderson/celltrack/internal/config"
	"github.com/ETAnderson/celltrack/internal/logging"
	"github.com/ETAnderson/celltrack/internal/state"
	"github.com/ETAnderson/celltrack/internal/tracking"
)

func main() {
	cfg := config.Load()
	logger := logging.New("api-service", cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Infow("config",
		"env", cfg.Env, "store_backend", cfg.StoreBackend, "db_dsn_set", cfg.MySQLDSN != "")

	factoryRes, err := state.NewStore(context.Background(), state.FactoryConfig{
		Backend:       cfg.StoreBackend,
		MySQLDSN:      cfg.MySQLDSN,
		SQLitePath:    cfg.SQLitePath,
		WorkbookPath:  cfg.WorkbookPath,
		RunMigrations: cfg.RunMigrations,
	})
	if err != nil {
		logger.Fatalw("state store init failed", "error", err)
	}
	store := factoryRes.Store
	defer func() { _ = store.Close() }()

	svc := tracking.NewService(store, logger.Named("tracking"))

	mux := http.NewServeMux()
	handlers.Register(mux, svc)

	var root http.Handler = mux
	root = middleware.IdempotencyMiddleware{
		Cache: state.NewMemoryIdempotencyCache(),
		Next:  root,
	}
	root = middleware.AuthMiddleware{
		Env:       cfg.Env,
		PublicKey: loadPublicKey(logger, cfg.JWTPublicKeyEnv),
		Next:      root,
	}
	root = middleware.ActorMiddleware{
		Env:  cfg.Env,
		Next: root,
	}
	root = middleware.RequestLogMiddleware{
		Logger: logger.Named("http"),
		Next:   root,
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infow("starting", "env", cfg.Env, "addr", server.Addr)

		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server error", "error", err)
		}
	}()

	waitForShutdown(logger, server)
}

// loadPublicKey returns nil (auth off) when the key env var is unset.
func loadPublicKey(logger *zap.SugaredLogger, envKey string) *rsa.PublicKey {
	if strings.TrimSpace(os.Getenv(envKey)) == "" {
		logger.Infow("no JWT public key configured; edits are attributed by X-Engineer in dev", "env_key", envKey)
		return nil
	}

	pub, err := auth.LoadRSAPublicKeyFromEnv(envKey)
	if err != nil {
		logger.Fatalw("jwt public key", "error", err)
	}
	return pub
}

func waitForShutdown(logger *zap.SugaredLogger, server *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = server.Shutdown(ctx)
	logger.Info("shutdown complete")
}
