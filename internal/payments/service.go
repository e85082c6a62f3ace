package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/internal/subscriptions"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
)

type signatureVerifier interface {
	Verify(paymentID, subscriptionID, signature string) bool
}

type statusTransitioner interface {
	Transition(ctx context.Context, input subscriptions.TransitionInput) (*subscriptions.TransitionResult, error)
}

// VerifyInput is the callback the gateway checkout hands back to the browser.
type VerifyInput struct {
	PaymentID      string
	SubscriptionID string
	Signature      string
}

// VerifyResult mirrors the checkout page contract.
type VerifyResult struct {
	Success bool
	Status  enums.SubscriptionStatus
}

// Service confirms subscription payments.
type Service struct {
	verifier      signatureVerifier
	subscriptions statusTransitioner
	metrics       *metrics.CheckoutMetrics
	logg          *logger.Logger
}

func NewService(verifier signatureVerifier, subs statusTransitioner, m *metrics.CheckoutMetrics, logg *logger.Logger) (*Service, error) {
	if verifier == nil {
		return nil, fmt.Errorf("signature verifier required")
	}
	if subs == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{verifier: verifier, subscriptions: subs, metrics: m, logg: logg}, nil
}

// VerifyPayment checks the callback signature and, only when it matches, marks
// the caller's subscription active. A mismatch is a hard failure and is never
// retried.
func (s *Service) VerifyPayment(ctx context.Context, userID uuid.UUID, input VerifyInput) (*VerifyResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())
	ctx = s.logg.WithSubscriptionID(ctx, input.SubscriptionID)

	if !s.verifier.Verify(input.PaymentID, input.SubscriptionID, input.Signature) {
		s.metrics.PaymentVerified(false)
		s.logg.Warn(ctx, "payment signature mismatch")
		return &VerifyResult{Success: false}, nil
	}
	s.metrics.PaymentVerified(true)

	res, err := s.subscriptions.Transition(ctx, subscriptions.TransitionInput{
		GatewaySubscriptionID: input.SubscriptionID,
		Status:                enums.SubscriptionStatusActive,
		Source:                subscriptions.SourcePaymentVerify,
		OwnerID:               userID,
		PaymentID:             input.PaymentID,
	})
	if err != nil {
		s.logg.Error(ctx, "activate subscription after payment failed", err)
		return nil, err
	}
	s.logg.Info(ctx, "payment verified")
	return &VerifyResult{Success: true, Status: res.Subscription.Status}, nil
}
