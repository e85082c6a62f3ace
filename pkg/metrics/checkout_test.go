package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCheckoutMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.CouponValidated("valid")
	m.CouponValidated("valid")
	m.SubscriptionCreated("Pro", "monthly", "")
	m.PaymentVerified(false)
	m.WebhookEvent("subscription.activated", "processed")
	m.RateLimited()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "bizvistar_checkout_coupon_validations_total", "result", "valid"); err != nil || got != 2 {
		t.Fatalf("expected 2 valid coupon validations, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "bizvistar_checkout_subscriptions_created_total", "coupon_type", "none"); err != nil || got != 1 {
		t.Fatalf("expected coupon_type=none subscription, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "bizvistar_checkout_payment_verifications_total", "result", "invalid"); err != nil || got != 1 {
		t.Fatalf("expected invalid verification, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "bizvistar_webhooks_events_total", "event", "subscription.activated"); err != nil || got != 1 {
		t.Fatalf("expected webhook event, got %f err=%v", got, err)
	}
	if mf := findMetricFamily(mfs, "bizvistar_checkout_rate_limited_total"); mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected rate limited counter 1")
	}
}

func TestNilCheckoutMetricsAreNoop(t *testing.T) {
	var m *CheckoutMetrics
	m.CouponValidated("valid")
	m.RateLimited()
	NewCheckoutMetrics(nil).PaymentVerified(true)
}
