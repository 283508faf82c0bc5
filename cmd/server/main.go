package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockroom/backend/internal/config"
	"stockroom/backend/internal/httpapi"
	"stockroom/backend/internal/logging"
	"stockroom/backend/internal/ratelimit"
	"stockroom/backend/internal/service"
	"stockroom/backend/internal/store"
	"stockroom/backend/internal/store/memory"
	pgstore "stockroom/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

type closer func() error

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close error", "error", err)
			}
		}
	}()

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	repo, repoClose, err := buildRepository(startupCtx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if repoClose != nil {
		closers = append(closers, repoClose)
	}

	limiter, limiterClose, err := buildLoginLimiter(startupCtx, cfg.Redis, cfg.Auth, logger)
	if err != nil {
		return err
	}
	if limiterClose != nil {
		closers = append(closers, limiterClose)
	}

	svc := service.New(repo, logger, service.Options{DefaultLowStockThreshold: cfg.Inventory.DefaultLowStockThreshold})
	auth := httpapi.NewAuthManager(cfg.Auth, repo)
	api := httpapi.New(svc, auth, logger, httpapi.Options{
		AllowedOrigin: cfg.Server.AllowedOrigin,
		LoginLimiter:  limiter,
	})

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("stockroom backend listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildRepository refuses to fall back to memory when a DSN is configured
// but unreachable.
func buildRepository(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Repository, closer, error) {
	if !cfg.Enabled() {
		logger.Info("repository: in-memory (seeded)")
		return memory.NewSeeded(logger), nil, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	if cfg.AutoMigrate {
		if err := pgstore.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("repository: postgres")
	return pgstore.New(pool), func() error { pool.Close(); return nil }, nil
}

// buildLoginLimiter prefers Redis so every replica shares one counter.
func buildLoginLimiter(ctx context.Context, redisCfg config.RedisConfig, authCfg config.AuthConfig, logger *slog.Logger) (ratelimit.Limiter, closer, error) {
	if !redisCfg.Enabled() {
		logger.Info("login limiter: memory")
		return ratelimit.NewMemory(authCfg.LoginMaxAttempts, authCfg.LoginWindow), nil, nil
	}

	limiter := ratelimit.NewRedis(
		ratelimit.NewRedisClient(redisCfg.Addr, redisCfg.Password, redisCfg.DB),
		"stockroom:login:",
		authCfg.LoginMaxAttempts,
		authCfg.LoginWindow,
	)
	if err := limiter.Ping(ctx); err != nil {
		_ = limiter.Close()
		return nil, nil, fmt.Errorf("redis unavailable and REDIS_ADDR is set: %w", err)
	}
	logger.Info("login limiter: redis", "addr", redisCfg.Addr)
	return limiter, limiter.Close, nil
}
