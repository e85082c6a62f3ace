package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/bizvistar/billing-backend/api/responses"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	// a reservation outlives any single gateway round trip
	inFlightTTL = 2 * time.Minute

	stateInFlight = "in_flight"
	stateDone     = "done"
)

type idempotencyRule struct {
	ttl time.Duration
	// optional routes only dedupe when the client sends a key
	optional bool
}

// Subscription creation must never reach the gateway twice for one checkout
// click, so its key is required and kept for a week.
var idempotencyRules = map[string]idempotencyRule{
	http.MethodPost + " /api/v1/checkout/subscriptions": {ttl: 7 * 24 * time.Hour},
	http.MethodPost + " /api/v1/billing/details":        {ttl: 24 * time.Hour, optional: true},
}

type idempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// idempotencyEntry is what sits under a key: first a reservation while the
// handler runs, then the finished response.
type idempotencyEntry struct {
	State       string `json:"state"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// The key is reserved before the handler runs, so a concurrent duplicate gets
// a 409 instead of a second gateway subscription. 5xx responses release the
// key so the client can retry.
func Idempotency(store idempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := ruleFor(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				if rule.optional {
					next.ServeHTTP(w, r)
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|"), clientKey)

			reservation, _ := json.Marshal(idempotencyEntry{State: stateInFlight, RequestHash: hash})
			reserved, err := store.SetNX(ctx, key, string(reservation), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(ctx, logg, w, store, key, hash)
				return
			}

			// the reservation must not outlive a panic or a 5xx
			finished := false
			detached := context.WithoutCancel(ctx)
			defer func() {
				if !finished {
					if delErr := store.Del(detached, key); delErr != nil && logg != nil {
						logg.Error(ctx, "release idempotency key", delErr)
					}
				}
			}()

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			if capture.statusCode() >= http.StatusInternalServerError {
				return
			}

			done, _ := json.Marshal(idempotencyEntry{
				State:       stateDone,
				RequestHash: hash,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err := store.Set(detached, key, string(done), rule.ttl); err != nil {
				if logg != nil {
					logg.Error(ctx, "persist idempotency response", err)
				}
				return
			}
			finished = true
		})
	}
}

func replayExisting(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store idempotencyStore, key, hash string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		// the holder released the key between our SETNX and GET
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency key"))
		return
	}

	var entry idempotencyEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency entry"))
		return
	}
	switch {
	case entry.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case entry.State != stateDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		if entry.ContentType != "" {
			w.Header().Set("Content-Type", entry.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(entry.Status)
		_, _ = w.Write(entry.Body)
	}
}

// ruleFor tries the chi route pattern first. Group middleware runs before
// sub-routers resolve the full pattern, so the raw path is the fallback.
func ruleFor(r *http.Request) (idempotencyRule, bool) {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			if rule, ok := idempotencyRules[r.Method+" "+pattern]; ok {
				return rule, true
			}
		}
	}
	rule, ok := idempotencyRules[r.Method+" "+r.URL.Path]
	return rule, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
