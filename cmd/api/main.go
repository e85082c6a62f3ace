package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bizvistar/billing-backend/api/controllers"
	"github.com/bizvistar/billing-backend/api/routes"
	"github.com/bizvistar/billing-backend/internal/catalog"
	"github.com/bizvistar/billing-backend/internal/checkout"
	"github.com/bizvistar/billing-backend/internal/eligibility"
	"github.com/bizvistar/billing-backend/internal/payments"
	"github.com/bizvistar/billing-backend/internal/pricing"
	"github.com/bizvistar/billing-backend/internal/profiles"
	"github.com/bizvistar/billing-backend/internal/ratelimit"
	"github.com/bizvistar/billing-backend/internal/subscriptions"
	razorpaywebhook "github.com/bizvistar/billing-backend/internal/webhooks/razorpay"
	"github.com/bizvistar/billing-backend/internal/websites"
	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/bizvistar/billing-backend/pkg/db"
	"github.com/bizvistar/billing-backend/pkg/instance"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
	"github.com/bizvistar/billing-backend/pkg/migrate"
	"github.com/bizvistar/billing-backend/pkg/outbox"
	"github.com/bizvistar/billing-backend/pkg/outbox/idempotency"
	"github.com/bizvistar/billing-backend/pkg/razorpay"
	"github.com/bizvistar/billing-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Format:      cfg.App.LogFormat,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	registry := prometheus.DefaultRegisterer
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	gormDB := dbClient.DB()
	subscriptionRepo := subscriptions.NewRepository(gormDB)

	evaluator, err := eligibility.NewEvaluator(subscriptionRepo, nil)
	if err != nil {
		logg.Error(ctx, "failed to build eligibility evaluator", err)
		os.Exit(1)
	}
	limiter, err := ratelimit.NewLimiter(ratelimit.LimiterParams{
		Store:  ratelimit.NewRepository(gormDB),
		Window: cfg.RateLimit.SubscriptionWindow,
		Limit:  cfg.RateLimit.SubscriptionLimit,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build rate limiter", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(cat, resolver, evaluator, checkoutMetrics, logg, nil)
	if err != nil {
		logg.Error(ctx, "failed to build checkout service", err)
		os.Exit(1)
	}
	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Catalog:           cat,
		Resolver:          resolver,
		Evaluator:         evaluator,
		Limiter:           limiter,
		Gateway:           gateway,
		Repository:        subscriptionRepo,
		Outbox:            outbox.NewService(outbox.NewRepository(gormDB), logg),
		TransactionRunner: dbClient,
		Metrics:           checkoutMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build subscription service", err)
		os.Exit(1)
	}
	paymentService, err := payments.NewService(payments.NewVerifier(gatewayClient.KeySecret()), subscriptionService, checkoutMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to build payment service", err)
		os.Exit(1)
	}
	profileService, err := profiles.NewService(profiles.NewRepository(gormDB), logg, nil)
	if err != nil {
		logg.Error(ctx, "failed to build profile service", err)
		os.Exit(1)
	}

	webhookService, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		Subscriptions: subscriptionService,
		Websites:      websites.NewRepository(gormDB),
		Logger:        logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build webhook service", err)
		os.Exit(1)
	}
	processed, err := idempotency.NewManager(redisClient, cfg.Idempotency.TTL)
	if err != nil {
		logg.Error(ctx, "failed to build webhook idempotency manager", err)
		os.Exit(1)
	}
	webhookGuard, err := razorpaywebhook.NewGuard(processed)
	if err != nil {
		logg.Error(ctx, "failed to build webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"gateway_mode": gatewayClient.Mode(),
		"instance":     instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:          cfg,
			Logger:          logg,
			HTTPMetrics:     httpMetrics,
			CheckoutMetrics: checkoutMetrics,
			MetricsHandler:  promhttp.Handler(),
			Store:           redisClient,
			Readiness: map[string]controllers.Pinger{
				"postgres": dbClient,
				"redis":    redisClient,
			},
			Checkout:       checkoutService,
			Subscriptions:  subscriptionService,
			Payments:       paymentService,
			Profiles:       profileService,
			Webhooks:       webhookService,
			WebhookSecrets: gatewayClient,
			WebhookGuard:   webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
