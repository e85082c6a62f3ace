package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/bizvistar/billing-backend/pkg/db"
	"github.com/bizvistar/billing-backend/pkg/instance"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
	"github.com/bizvistar/billing-backend/pkg/migrate"
	"github.com/bizvistar/billing-backend/pkg/outbox"
	"github.com/bizvistar/billing-backend/pkg/outbox/registry"
	"github.com/bizvistar/billing-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Env:         cfg.App.Env,
		Format:      cfg.App.LogFormat,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(ctx, "failed to build event registry", err)
		os.Exit(1)
	}
	var wake <-chan struct{}
	if channel := cfg.Outbox.NotifyChannel; channel != "" && !cfg.FeatureFlags.UseSQLite {
		notifier, err := outbox.Listen(ctx, cfg.DB.DSN, channel, logg)
		if err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "outbox listener unavailable, polling only")
		} else {
			defer notifier.Close()
			wake = notifier.Wake()
		}
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Wake:       wake,
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox publisher", err)
		os.Exit(1)
	}

	go serveMetrics(ctx, logg, cfg.Service.MetricsAddr)

	logg.Info(logg.WithField(ctx, "topics", eventRegistry.Topics()), "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string) {
	if addr == "" {
		return
	}
	logg.Info(logg.WithField(ctx, "addr", addr), "serving worker metrics")
	if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer); err != nil {
		logg.Error(ctx, "metrics listener stopped", err)
	}
}
