package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics counts checkout outcomes by plan, coupon and result.
type CheckoutMetrics struct {
	couponValidations *prometheus.CounterVec
	subscriptions     *prometheus.CounterVec
	rateLimited       prometheus.Counter
	verifications     *prometheus.CounterVec
	webhookEvents     *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on reg. A nil registerer
// yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		couponValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "coupon_validations_total",
			Help:      "Coupon validation requests by outcome.",
		}, []string{"result"}),
		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "subscriptions_created_total",
			Help:      "Gateway subscriptions created by plan, cycle and coupon type.",
		}, []string{"plan", "cycle", "coupon_type"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "rate_limited_total",
			Help:      "Subscription attempts rejected by the per-user rate limit.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "payment_verifications_total",
			Help:      "Payment signature verifications by outcome.",
		}, []string{"result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "events_total",
			Help:      "Gateway webhook deliveries by event and outcome.",
		}, []string{"event", "result"}),
	}
	reg.MustRegister(m.couponValidations, m.subscriptions, m.rateLimited, m.verifications, m.webhookEvents)
	return m
}

// CouponValidated records a validation outcome such as "valid", "expired" or "invalid".
func (m *CheckoutMetrics) CouponValidated(result string) {
	if m == nil || m.couponValidations == nil {
		return
	}
	m.couponValidations.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CheckoutMetrics) SubscriptionCreated(plan, cycle, couponType string) {
	if m == nil || m.subscriptions == nil {
		return
	}
	if couponType == "" {
		couponType = "none"
	}
	m.subscriptions.WithLabelValues(normalizeLabel(plan), normalizeLabel(cycle), couponType).Inc()
}

func (m *CheckoutMetrics) RateLimited() {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *CheckoutMetrics) PaymentVerified(valid bool) {
	if m == nil || m.verifications == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *CheckoutMetrics) WebhookEvent(event, result string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(event), normalizeLabel(result)).Inc()
}
