package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bizvistar/billing-backend/api/responses"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

type windowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ThrottlePolicy defines a fixed-window limit for one route family.
type ThrottlePolicy struct {
	name   string
	window time.Duration
	limit  int
}

// NewThrottlePolicy builds a policy with the supplied window and limit.
func NewThrottlePolicy(name string, window time.Duration, limit int) ThrottlePolicy {
	return ThrottlePolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  limit,
	}
}

func (p ThrottlePolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p ThrottlePolicy) normalizedName() string {
	if p.name == "" {
		return "default"
	}
	return p.name
}

// scope keys authenticated callers by user and anonymous ones by ip.
func (p ThrottlePolicy) scope(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return fmt.Sprintf("%s:user:%s", p.normalizedName(), userID)
	}
	if ip := clientIP(r); ip != "" {
		return fmt.Sprintf("%s:ip:%s", p.normalizedName(), ip)
	}
	return ""
}

// Throttle rejects callers that exceed the policy within the current window.
// Counter failures fail open.
func Throttle(policy ThrottlePolicy, store windowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := policy.scope(r)
			if scope == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(policy.limit), policy.window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy": policy.normalizedName(),
						"error":  err.Error(),
					}), "throttle counter unavailable, allowing request")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":         policy.normalizedName(),
						"attempts":       count,
						"limit":          policy.limit,
						"window_seconds": int(policy.window.Seconds()),
					}), "throttle.blocked")
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(policy.window.Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests, please slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the caller address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
