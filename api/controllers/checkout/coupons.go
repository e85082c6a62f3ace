package checkout

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/bizvistar/billing-backend/api/controllers/usercontext"
	"github.com/bizvistar/billing-backend/api/responses"
	"github.com/bizvistar/billing-backend/api/validators"
	checkoutsvc "github.com/bizvistar/billing-backend/internal/checkout"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

type validateCouponRequest struct {
	Code         string `json:"code" validate:"max=64"`
	PlanName     string `json:"planName,omitempty" validate:"max=64"`
	BillingCycle string `json:"billingCycle,omitempty" validate:"omitempty,oneof=monthly yearly"`
}

type validateCouponResponse struct {
	Valid        bool             `json:"valid"`
	Code         string           `json:"code,omitempty"`
	Type         string           `json:"type,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	Message      string           `json:"message,omitempty"`
	PercentOff   *decimal.Decimal `json:"percentOff,omitempty"`
	MaxDiscount  *string          `json:"maxDiscount,omitempty"`
	TrialDays    int              `json:"trialDays,omitempty"`
	DisplayPrice *string          `json:"displayPrice,omitempty"`
	StruckPrice  *string          `json:"struckPrice,omitempty"`
}

// ValidateCoupon previews a coupon for the signed-in user. Rejections are a
// normal 200 response with valid=false.
func ValidateCoupon(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.ValidateCoupon(r.Context(), userID, checkoutsvc.ValidateCouponInput{
			Code:         payload.Code,
			PlanName:     payload.PlanName,
			BillingCycle: payload.BillingCycle,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newValidateCouponResponse(res))
	}
}

func newValidateCouponResponse(res *checkoutsvc.CouponValidation) validateCouponResponse {
	return validateCouponResponse{
		Valid:        res.Valid,
		Code:         res.Code,
		Type:         string(res.Type),
		Reason:       string(res.Reason),
		Message:      res.Message,
		PercentOff:   res.PercentOff,
		MaxDiscount:  optionalMoney(res.MaxDiscount),
		TrialDays:    res.TrialDays,
		DisplayPrice: optionalMoney(res.DisplayPrice),
		StruckPrice:  optionalMoney(res.StruckPrice),
	}
}
