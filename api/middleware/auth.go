package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bizvistar/billing-backend/api/responses"
	pkgAuth "github.com/bizvistar/billing-backend/pkg/auth"
	"github.com/bizvistar/billing-backend/pkg/config"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the caller.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, pkgAuth.ErrTokenExpired) {
					msg = "token expired"
				}
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+msg+`"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			ctx := WithCaller(r.Context(), Caller{UserID: claims.UserID.String(), Email: claims.Email})
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <token>" in any case, or a bare token.
func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	if found || strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return scheme
}
