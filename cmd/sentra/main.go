package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentra-id/sentra/internal/acl"
	"github.com/sentra-id/sentra/internal/app"
	"github.com/sentra-id/sentra/internal/audit"
	"github.com/sentra-id/sentra/internal/audit/audithttp"
	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/observability"
	"github.com/sentra-id/sentra/internal/platform/cache"
	"github.com/sentra-id/sentra/internal/platform/db"
	"github.com/sentra-id/sentra/internal/principals"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		// The ACL cache is an optimization; the store stays authoritative.
		logger.Warn("redis unavailable, running without acl cache", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditService := audit.NewService(logger, audit.NewRepository(pool))

	codec, err := auth.NewCodec(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("token codec", slog.Any("error", err))
		os.Exit(1)
	}
	authService := auth.NewService(logger, auth.NewRepository(pool), codec, auth.LockoutPolicy{
		MaxFailures:    cfg.LockoutMaxFailures,
		Window:         cfg.LockoutWindow,
		ResetOnSuccess: cfg.LockoutResetOnSuccess,
	}).WithAuditor(auditService).WithMetrics(metrics)

	aclService := acl.NewService(logger, acl.NewStore(pool), acl.NewCache(redisClient, cfg.ACLCacheTTL)).
		WithAuditor(auditService).
		WithMetrics(metrics)

	principalsService := principals.NewService(logger, principals.NewRepository(pool)).
		WithAuditor(auditService).
		WithMetrics(metrics)

	authMW := auth.Middleware{Service: authService, Logger: logger}
	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		AuthMiddleware:    authMW,
		AuthHandler:       auth.NewHandler(logger, authService),
		ACLHandler:        acl.NewHandler(logger, aclService),
		PrincipalsHandler: principals.NewHandler(logger, principalsService),
		AuditHandler:      audithttp.NewHandler(logger, auditService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("sentra listening", slog.String("addr", cfg.AppAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}
