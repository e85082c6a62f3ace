package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bizvistar/billing-backend/api/controllers"
	billingcontrollers "github.com/bizvistar/billing-backend/api/controllers/billing"
	checkoutcontrollers "github.com/bizvistar/billing-backend/api/controllers/checkout"
	webhookcontrollers "github.com/bizvistar/billing-backend/api/controllers/webhooks"
	"github.com/bizvistar/billing-backend/api/middleware"
	checkoutsvc "github.com/bizvistar/billing-backend/internal/checkout"
	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
)

// cacheStore is the redis surface shared by the idempotency and throttle middleware.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type webhookSecretSource interface {
	WebhookSecret() string
}

// Dependencies is everything the router mounts.
type Dependencies struct {
	Config          *config.Config
	Logger          *logger.Logger
	HTTPMetrics     *metrics.HTTPMetrics
	CheckoutMetrics *metrics.CheckoutMetrics
	MetricsHandler  http.Handler
	Store           cacheStore
	Readiness       map[string]controllers.Pinger

	Checkout       checkoutsvc.Service
	Subscriptions  checkoutcontrollers.SubscriptionService
	Payments       checkoutcontrollers.PaymentService
	Profiles       billingcontrollers.DetailsService
	Webhooks       webhookcontrollers.RazorpayWebhookService
	WebhookSecrets webhookSecretSource
	WebhookGuard   webhookGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	couponPolicy := middleware.NewThrottlePolicy(
		"coupon-validate",
		cfg.RateLimit.CouponWindow,
		cfg.RateLimit.CouponLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(deps.Webhooks, deps.WebhookSecrets, deps.WebhookGuard, deps.CheckoutMetrics, logg))
	})

	r.Get("/api/v1/checkout/details", checkoutcontrollers.CheckoutDetails(deps.Checkout, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Store, logg))

		r.Get("/api/ping", controllers.PrivatePing())

		r.Route("/api/v1/checkout", func(r chi.Router) {
			r.With(middleware.Throttle(couponPolicy, deps.Store, logg)).
				Post("/coupons/validate", checkoutcontrollers.ValidateCoupon(deps.Checkout, logg))
			r.Post("/subscriptions", checkoutcontrollers.CreateSubscription(deps.Subscriptions, logg))
			r.Get("/subscriptions", checkoutcontrollers.ListSubscriptions(deps.Subscriptions, logg))
			r.Get("/subscriptions/{subscriptionId}", checkoutcontrollers.GetSubscription(deps.Subscriptions, logg))
			r.Post("/payments/verify", checkoutcontrollers.VerifyPayment(deps.Payments, logg))
		})

		r.Route("/api/v1/billing", func(r chi.Router) {
			r.Post("/details", billingcontrollers.SaveBillingDetails(deps.Profiles, logg))
		})
	})

	return r
}
