package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shadowscope/shadow-ai-assessor/internal/api/ops"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/cache"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/telemetry"
	"github.com/shadowscope/shadow-ai-assessor/internal/metrics"
	"github.com/shadowscope/shadow-ai-assessor/internal/service"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/scheduler"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logger)

	if err := run(ctx, cfg); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting shadow ai assessor",
		"version", cfg.Version,
		"environment", cfg.Environment,
		"port", cfg.Server.Port)

	zapLogger, err := telemetry.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create zap logger: %w", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	provider, err := telemetry.InitializeOpenTelemetry(ctx, cfg.Telemetry, cfg.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown telemetry", "error", err)
		}
	}()

	domainMetrics, err := metrics.NewRegistry("shadow-ai-assessor")
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	store, err := cache.NewRedisCache(&cfg.Redis, zapLogger.Named("cache"))
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer store.Close()

	services := service.NewServices(cfg, store, zapLogger, domainMetrics)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sched := scheduler.New(
		services.Engine,
		services.Repositories.Settings,
		cfg.Assessment.Accounts,
		cfg.Assessment.Interval,
		scheduler.NewMetrics(promRegistry),
		zapLogger.Named("scheduler"),
	)

	health := ops.NewHealthService("shadow-ai-assessor", cfg.Version, 0,
		ops.CheckerFunc{CheckName: "redis", Fn: store.Ping})
	server := ops.NewServer(cfg.Server, ops.NewHandler(health, promRegistry), zapLogger.Named("ops"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("service stopped with error", zap.Error(err))
		return err
	}
	return nil
}
