package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bizvistar/billing-backend/api/responses"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
)

func TestRequestIDPropagatesOrMints(t *testing.T) {
	handler := RequestID(logger.Nop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(responses.RequestIDHeader, "req-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(responses.RequestIDHeader); got != "req-123" {
		t.Fatalf("expected propagated id, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(responses.RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(responses.RequestIDHeader); got == "" || len(got) > maxRequestIDLen {
		t.Fatalf("expected minted id, got %q", got)
	}
}

func TestUsableRequestID(t *testing.T) {
	cases := map[string]bool{
		"req-123":                              true,
		"0b6f3c1e-8f5d-4e7a-9c1d-2f3a4b5c6d7e": true,
		"":                                     false,
		"has space":                            false,
		"line\nbreak":                          false,
		"caf\u00e9":                            false,
		strings.Repeat("x", maxRequestIDLen):   true,
	}
	for id, want := range cases {
		if got := usableRequestID(id); got != want {
			t.Fatalf("usableRequestID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
}

func TestLoggingRecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(Logging(logger.Nop(), m))
	r.Get("/api/v1/checkout/subscriptions/{subscriptionId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/subscriptions/sub_1", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}

	count, err := testutil.GatherAndCount(reg, "bizvistar_http_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one series, got %d", count)
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "bizvistar_http_requests_total" {
			continue
		}
		for _, label := range mf.GetMetric()[0].GetLabel() {
			if label.GetName() == "route" && label.GetValue() != "/api/v1/checkout/subscriptions/{subscriptionId}" {
				t.Fatalf("expected route pattern label, got %q", label.GetValue())
			}
		}
	}
}
