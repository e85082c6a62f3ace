package usercontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/api/middleware"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
)

// ResolveUserID extracts the authenticated subscriber.
func ResolveUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
