package payments

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/internal/subscriptions"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

type stubTransitioner struct {
	inputs []subscriptions.TransitionInput
	err    error
}

func (s *stubTransitioner) Transition(_ context.Context, input subscriptions.TransitionInput) (*subscriptions.TransitionResult, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return &subscriptions.TransitionResult{
		Subscription:   &models.Subscription{GatewaySubscriptionID: input.GatewaySubscriptionID, Status: input.Status},
		PreviousStatus: enums.SubscriptionStatusCreated,
		Changed:        true,
	}, nil
}

func newPaymentService(t *testing.T, subs *stubTransitioner, logg *logger.Logger) *Service {
	t.Helper()
	if logg == nil {
		logg = logger.Nop()
	}
	svc, err := NewService(NewVerifier(testSecret), subs, nil, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestVerifyPaymentActivatesOwnedSubscription(t *testing.T) {
	subs := &stubTransitioner{}
	svc := newPaymentService(t, subs, nil)
	userID := uuid.New()

	res, err := svc.VerifyPayment(context.Background(), userID, VerifyInput{
		PaymentID:      testPaymentID,
		SubscriptionID: testSubscription,
		Signature:      testSignature,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.Status != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(subs.inputs) != 1 {
		t.Fatalf("expected one transition, got %d", len(subs.inputs))
	}
	in := subs.inputs[0]
	if in.OwnerID != userID || in.PaymentID != testPaymentID || in.Source != subscriptions.SourcePaymentVerify || in.Status != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected transition input %+v", in)
	}
}

func TestVerifyPaymentMismatchNeverActivates(t *testing.T) {
	buf := &bytes.Buffer{}
	subs := &stubTransitioner{}
	svc := newPaymentService(t, subs, logger.New(logger.Options{ServiceName: "test", Output: buf}))

	res, err := svc.VerifyPayment(context.Background(), uuid.New(), VerifyInput{
		PaymentID:      testPaymentID,
		SubscriptionID: testSubscription,
		Signature:      strings.Repeat("0", 64),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected failure on mismatch")
	}
	if len(subs.inputs) != 0 {
		t.Fatalf("subscription must not be touched on mismatch")
	}
	if !strings.Contains(buf.String(), "payment signature mismatch") {
		t.Fatalf("expected warning log, got %s", buf.String())
	}
}

func TestVerifyPaymentErrors(t *testing.T) {
	svc := newPaymentService(t, &stubTransitioner{}, nil)
	if _, err := svc.VerifyPayment(context.Background(), uuid.Nil, VerifyInput{}); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	failing := newPaymentService(t, &stubTransitioner{err: pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")}, nil)
	_, err := failing.VerifyPayment(context.Background(), uuid.New(), VerifyInput{
		PaymentID:      testPaymentID,
		SubscriptionID: testSubscription,
		Signature:      testSignature,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
