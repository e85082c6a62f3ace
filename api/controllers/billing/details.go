package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/api/controllers/usercontext"
	"github.com/bizvistar/billing-backend/api/responses"
	"github.com/bizvistar/billing-backend/api/validators"
	"github.com/bizvistar/billing-backend/internal/profiles"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

// DetailsService stores the billing form on the caller's profile.
type DetailsService interface {
	SaveBillingDetails(ctx context.Context, userID uuid.UUID, input profiles.BillingDetailsDTO) error
}

// Required fields are checked by the profile service so the error lists all
// of them at once.
type billingDetailsRequest struct {
	FullName    string `json:"fullName" validate:"max=120"`
	Address     string `json:"address" validate:"max=300"`
	City        string `json:"city,omitempty" validate:"max=100"`
	State       string `json:"state" validate:"max=100"`
	ZipCode     string `json:"zipCode" validate:"max=20"`
	Country     string `json:"country" validate:"max=100"`
	Phone       string `json:"phone,omitempty" validate:"max=20"`
	CompanyName string `json:"companyName,omitempty" validate:"max=200"`
	GSTNumber   string `json:"gstNumber,omitempty" validate:"omitempty,alphanum,max=15"`
}

// SaveBillingDetails upserts the billing address used on invoices.
func SaveBillingDetails(svc DetailsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload billingDetailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.SaveBillingDetails(r.Context(), userID, profiles.BillingDetailsDTO{
			FullName:    validators.SanitizeString(payload.FullName, 120),
			Address:     validators.SanitizeString(payload.Address, 300),
			City:        validators.SanitizeString(payload.City, 100),
			State:       validators.SanitizeString(payload.State, 100),
			ZipCode:     validators.SanitizeString(payload.ZipCode, 20),
			Country:     validators.SanitizeString(payload.Country, 100),
			Phone:       validators.SanitizeString(payload.Phone, 20),
			CompanyName: validators.SanitizeString(payload.CompanyName, 200),
			GSTNumber:   validators.SanitizeString(payload.GSTNumber, 15),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"success": true})
	}
}
