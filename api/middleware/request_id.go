package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/api/responses"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

const maxRequestIDLen = 128

// RequestID echoes a usable caller supplied X-Request-Id or mints a UUID. The
// id lands in the response header, the error envelope and every log line.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(responses.RequestIDHeader))
			if !usableRequestID(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(responses.RequestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// usableRequestID accepts short ids made of visible ASCII so a client cannot
// forge log lines.
func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
