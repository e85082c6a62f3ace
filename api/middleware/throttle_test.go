package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bizvistar/billing-backend/pkg/logger"
)

type countingWindow struct {
	counts map[string]int64
	err    error
}

func (c *countingWindow) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func TestThrottleBlocksAfterLimit(t *testing.T) {
	store := &countingWindow{counts: map[string]int64{}}
	policy := NewThrottlePolicy("coupon-validate", time.Minute, 2)
	handler := Throttle(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/coupons/validate", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if _, ok := store.counts["coupon-validate:user:user-1"]; !ok {
		t.Fatalf("expected per-user scope, got %v", store.counts)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/coupons/validate", nil)
	other = other.WithContext(WithUserID(other.Context(), "user-2"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, other)
	if resp.Code != http.StatusOK {
		t.Fatalf("other users keep their own window, got %d", resp.Code)
	}
}

func TestThrottleFallsBackToIP(t *testing.T) {
	store := &countingWindow{counts: map[string]int64{}}
	handler := Throttle(NewThrottlePolicy("details", time.Minute, 1), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if store.counts["details:ip:203.0.113.9"] != 1 {
		t.Fatalf("expected ip scope, got %v", store.counts)
	}
}

func TestThrottleFailsOpen(t *testing.T) {
	store := &countingWindow{err: errors.New("redis down")}
	called := false
	handler := Throttle(NewThrottlePolicy("coupon-validate", time.Minute, 1), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(WithUserID(req.Context(), "u")))
	if !called {
		t.Fatal("expected request to pass when the counter is unavailable")
	}
}

func TestThrottleFailsOpenLogsWarning(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	store := &countingWindow{err: errors.New("redis down")}
	handler := Throttle(NewThrottlePolicy("coupon-validate", time.Minute, 1), store, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithUserID(req.Context(), "u")))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "redis down") {
		t.Fatalf("expected a warning carrying the counter error, got %s", out)
	}
}
