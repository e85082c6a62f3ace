package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bizvistar/billing-backend/internal/catalog"
	"github.com/bizvistar/billing-backend/internal/cron"
	"github.com/bizvistar/billing-backend/internal/eligibility"
	"github.com/bizvistar/billing-backend/internal/pricing"
	"github.com/bizvistar/billing-backend/internal/ratelimit"
	"github.com/bizvistar/billing-backend/internal/subscriptions"
	"github.com/bizvistar/billing-backend/internal/websites"
	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/bizvistar/billing-backend/pkg/db"
	"github.com/bizvistar/billing-backend/pkg/instance"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
	"github.com/bizvistar/billing-backend/pkg/migrate"
	"github.com/bizvistar/billing-backend/pkg/outbox"
	"github.com/bizvistar/billing-backend/pkg/razorpay"
	"github.com/bizvistar/billing-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := razorpay.NewClient(ctx, cfg.Gateway, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap razorpay client", err)
		os.Exit(1)
	}
	gateway := subscriptions.NewRazorpayGateway(gatewayClient)

	cat, err := catalog.Default()
	if err != nil {
		logg.Error(ctx, "failed to load plan catalog", err)
		os.Exit(1)
	}
	resolver, err := pricing.NewResolver(cat)
	if err != nil {
		logg.Error(ctx, "failed to build price resolver", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	subscriptionRepo := subscriptions.NewRepository(gormDB)
	rateLimitRepo := ratelimit.NewRepository(gormDB)
	websiteRepo := websites.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)

	evaluator, err := eligibility.NewEvaluator(subscriptionRepo, nil)
	if err != nil {
		logg.Error(ctx, "failed to build eligibility evaluator", err)
		os.Exit(1)
	}
	limiter, err := ratelimit.NewLimiter(ratelimit.LimiterParams{
		Store:  rateLimitRepo,
		Window: cfg.RateLimit.SubscriptionWindow,
		Limit:  cfg.RateLimit.SubscriptionLimit,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build rate limiter", err)
		os.Exit(1)
	}
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Catalog:           cat,
		Resolver:          resolver,
		Evaluator:         evaluator,
		Limiter:           limiter,
		Gateway:           gateway,
		Repository:        subscriptionRepo,
		Outbox:            outbox.NewService(outboxRepo, logg),
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build subscription service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewSubscriptionReconcileJob(cron.SubscriptionReconcileJobParams{
		Logger:        logg,
		Subscriptions: subscriptionRepo,
		Gateway:       gateway,
		Transitioner:  subscriptionService,
		Websites:      websiteRepo,
		Limit:         cfg.Cron.ReconcileBatch,
		Lookback:      cfg.Cron.ReconcileLookback,
	})
	if err != nil {
		logg.Error(ctx, "failed to create reconcile job", err)
		os.Exit(1)
	}
	rateLimitJob, err := cron.NewRateLimitRetentionJob(cron.RateLimitRetentionJobParams{
		Logger:     logg,
		Repository: rateLimitRepo,
		Retention:  cfg.RateLimit.LogRetention,
	})
	if err != nil {
		logg.Error(ctx, "failed to create rate limit retention job", err)
		os.Exit(1)
	}
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:         logg,
		DB:             dbClient,
		Repository:     outboxRepo,
		Retention:      time.Duration(cfg.Cron.OutboxRetention) * 24 * time.Hour,
		ParkedAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	for _, entry := range []struct {
		job   cron.Job
		every time.Duration
	}{
		{reconcileJob, 0},
		{rateLimitJob, cfg.Cron.RetentionEvery},
		{outboxJob, cfg.Cron.RetentionEvery},
	} {
		if err := registry.Add(entry.job, entry.every); err != nil {
			logg.Error(ctx, "failed to register cron job", err)
			os.Exit(1)
		}
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+lockEnv(cfg.App.Env)), instance.GetID(), lockTTL(cfg.Cron.Interval))
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	if addr := cfg.Service.MetricsAddr; addr != "" {
		go func() {
			logg.Info(logg.WithField(ctx, "addr", addr), "serving worker metrics")
			if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer); err != nil {
				logg.Error(ctx, "metrics listener stopped", err)
			}
		}()
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

// lockTTL keeps a crashed worker's lease from outliving the next cycle.
func lockTTL(interval time.Duration) time.Duration {
	if interval <= time.Minute {
		return interval
	}
	return interval - 30*time.Second
}
