package checkout

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/api/controllers/usercontext"
	"github.com/bizvistar/billing-backend/api/responses"
	"github.com/bizvistar/billing-backend/api/validators"
	"github.com/bizvistar/billing-backend/internal/payments"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

// PaymentService confirms gateway checkout callbacks.
type PaymentService interface {
	VerifyPayment(ctx context.Context, userID uuid.UUID, input payments.VerifyInput) (*payments.VerifyResult, error)
}

type verifyPaymentRequest struct {
	PaymentID      string `json:"razorpay_payment_id" validate:"required,gatewayid=pay"`
	SubscriptionID string `json:"razorpay_subscription_id" validate:"required,gatewayid=sub"`
	Signature      string `json:"razorpay_signature" validate:"required,max=128"`
}

type verifyPaymentResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
}

// VerifyPayment checks the checkout callback signature. A mismatch is a 200
// with success=false.
func VerifyPayment(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.VerifyPayment(r.Context(), userID, payments.VerifyInput{
			PaymentID:      payload.PaymentID,
			SubscriptionID: payload.SubscriptionID,
			Signature:      payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verifyPaymentResponse{Success: res.Success, Status: string(res.Status)})
	}
}
