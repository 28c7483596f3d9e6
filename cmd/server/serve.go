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

	"github.com/drullandev/trust-engine/internal/adapters/clearance"
	httpHandlers "github.com/drullandev/trust-engine/internal/adapters/http/handlers"
	httpMiddleware "github.com/drullandev/trust-engine/internal/adapters/http/middleware"
	"github.com/drullandev/trust-engine/internal/adapters/storage/memory"
	redisstorage "github.com/drullandev/trust-engine/internal/adapters/storage/redis"
	"github.com/drullandev/trust-engine/internal/config"
	"github.com/drullandev/trust-engine/internal/core/ports"
	"github.com/drullandev/trust-engine/internal/core/services"
)

func serve(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := []services.Option{services.WithLogger(logger)}
	publisher, closeFn, err := initBlockMirror(cfg.BlockMirror, logger)
	if err != nil {
		return fmt.Errorf("failed to init block mirror: %w", err)
	}
	defer closeFn()
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}

	engine, err := services.NewAdmissionService(memory.New(cfg.Engine.RecordShape()), cfg.Engine, opts...)
	if err != nil {
		return fmt.Errorf("failed to create admission service: %w", err)
	}

	routes := httpHandlers.RouterConfig{
		AdminKey: cfg.Server.AdminKey,
		Proxies:  httpMiddleware.NewClientIPResolver(cfg.Server.TrustedProxies),
	}
	if cfg.Server.AdminKey == "" {
		logger.Warn("ADMIN_API_KEY is empty; reporting and admin routes are unauthenticated")
	}
	var issuer httpHandlers.ClearanceIssuer
	if cfg.Clearance.Enabled() {
		clearanceIssuer, err := clearance.NewIssuer([]byte(cfg.Clearance.Secret), cfg.Clearance.TTL)
		if err != nil {
			return fmt.Errorf("failed to create clearance issuer: %w", err)
		}
		issuer = clearanceIssuer
		routes.Verifier = clearanceIssuer
	}
	routes.Trust = httpHandlers.NewTrustHandler(engine, issuer, ports.SystemClock{}, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           httpHandlers.NewRouter(routes),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("engine loop stopped", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	logger.Info("trust engine listening",
		"addr", srv.Addr,
		"block_mirror", cfg.BlockMirror.Type,
		"clearance", cfg.Clearance.Enabled(),
		"trusted_proxies", len(cfg.Server.TrustedProxies),
		"time_window", cfg.Engine.TimeWindow,
		"block_duration", cfg.Engine.BlockDuration,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	return nil
}

func initBlockMirror(cfg config.BlockMirrorConfig, logger *slog.Logger) (ports.BlockPublisher, func(), error) {
	switch cfg.Type {
	case "redis":
		mirror, err := newRedisMirror(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return mirror, func() {
			if err := mirror.Close(); err != nil {
				logger.Warn("failed to close redis block mirror", "error", err)
			}
		}, nil
	case "none", "":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported block mirror: %s", cfg.Type)
	}
}

func newRedisMirror(cfg config.RedisConfig) (*redisstorage.BlockMirror, error) {
	return redisstorage.New(redisstorage.Config{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})
}
