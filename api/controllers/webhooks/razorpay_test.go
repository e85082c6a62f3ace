package webhooks

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	razorpaywebhook "github.com/bizvistar/billing-backend/internal/webhooks/razorpay"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
	"github.com/bizvistar/billing-backend/pkg/outbox/idempotency"
	"github.com/bizvistar/billing-backend/pkg/razorpay"
)

const testWebhookSecret = "whsec_test"

const activatedEvent = `{"entity":"event","event":"subscription.activated","contains":["subscription"],"payload":{"subscription":{"entity":{"id":"sub_00000000000001","status":"active"}}},"created_at":1760000000}`

type fakeWebhookService struct {
	calls  int
	result string
	err    error
	last   *razorpaywebhook.Event
}

func (f *fakeWebhookService) HandleEvent(_ context.Context, event *razorpaywebhook.Event) (string, error) {
	f.calls++
	f.last = event
	return f.result, f.err
}

type staticSecret string

func (s staticSecret) WebhookSecret() string { return string(s) }

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: map[string]string{}}
}

func (s *inMemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = "1"
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return "bv:idempotency:" + scope + ":" + id
}

func (s *inMemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func newGuard(t *testing.T) *razorpaywebhook.Guard {
	t.Helper()
	manager, err := idempotency.NewManager(newInMemoryStore(), time.Hour)
	if err != nil {
		t.Fatalf("manager setup: %v", err)
	}
	guard, err := razorpaywebhook.NewGuard(manager)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func signedRequest(body, eventID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewBufferString(body))
	req.Header.Set(signatureHeader, razorpay.Sign(testWebhookSecret, []byte(body)))
	if eventID != "" {
		req.Header.Set(eventIDHeader, eventID)
	}
	return req
}

func TestRazorpayWebhook_SuccessAndIdempotent(t *testing.T) {
	service := &fakeWebhookService{result: razorpaywebhook.ResultProcessed}
	reg := prometheus.NewRegistry()
	handler := RazorpayWebhook(service, staticSecret(testWebhookSecret), newGuard(t), metrics.NewCheckoutMetrics(reg), logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(activatedEvent, "evt_1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 || service.last.SubscriptionID() != "sub_00000000000001" {
		t.Fatalf("expected one parsed event, got %d calls", service.calls)
	}

	// Replay the same delivery
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, signedRequest(activatedEvent, "evt_1"))
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}

	count, err := testutil.GatherAndCount(reg, "bizvistar_webhooks_events_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected processed and duplicate series, got %d", count)
	}
}

func TestRazorpayWebhook_InvalidSignature(t *testing.T) {
	service := &fakeWebhookService{result: razorpaywebhook.ResultProcessed}
	handler := RazorpayWebhook(service, staticSecret(testWebhookSecret), newGuard(t), nil, logger.Nop())

	for _, sig := range []string{"", "deadbeef", razorpay.Sign("other_secret", []byte(activatedEvent))} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewBufferString(activatedEvent))
		req.Header.Set(signatureHeader, sig)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("signature %q: expected 401, got %d", sig, rec.Code)
		}
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestRazorpayWebhook_FailureReleasesMarker(t *testing.T) {
	service := &fakeWebhookService{err: errors.New("db down")}
	handler := RazorpayWebhook(service, staticSecret(testWebhookSecret), newGuard(t), nil, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(activatedEvent, "evt_2"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	service.err = nil
	service.result = razorpaywebhook.ResultProcessed
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(activatedEvent, "evt_2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", rec.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected redelivery processed, got %d calls", service.calls)
	}
}

func TestRazorpayWebhook_BodyKeyedWithoutEventID(t *testing.T) {
	service := &fakeWebhookService{result: razorpaywebhook.ResultIgnored}
	handler := RazorpayWebhook(service, staticSecret(testWebhookSecret), newGuard(t), nil, logger.Nop())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(activatedEvent, ""))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if service.calls != 1 {
		t.Fatalf("expected identical bodies collapsed, got %d calls", service.calls)
	}
}

func TestRazorpayWebhook_MalformedBody(t *testing.T) {
	handler := RazorpayWebhook(&fakeWebhookService{}, staticSecret(testWebhookSecret), newGuard(t), nil, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(`{"entity":"event"}`, "evt_3"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRazorpayWebhook_MissingDependencies(t *testing.T) {
	guard := newGuard(t)
	cases := []http.HandlerFunc{
		RazorpayWebhook(nil, staticSecret(testWebhookSecret), guard, nil, logger.Nop()),
		RazorpayWebhook(&fakeWebhookService{}, staticSecret(""), guard, nil, logger.Nop()),
		RazorpayWebhook(&fakeWebhookService{}, staticSecret(testWebhookSecret), nil, nil, logger.Nop()),
	}
	for i, handler := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(activatedEvent, "evt_4"))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("case %d: expected 500, got %d", i, rec.Code)
		}
	}
}
