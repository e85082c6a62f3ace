package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/internal/catalog"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
)

// Reason explains why a coupon was rejected.
type Reason string

const (
	ReasonExpired          Reason = "expired"
	ReasonLimitReached     Reason = "limit reached"
	ReasonAlreadyUsed      Reason = "already used"
	ReasonExistingCustomer Reason = "existing customer"
	ReasonInvalid          Reason = "invalid"
)

var reasonMessages = map[Reason]string{
	ReasonExpired:          "Coupon Expired",
	ReasonLimitReached:     "Coupon usage limit reached",
	ReasonAlreadyUsed:      "You have already used this coupon",
	ReasonExistingCustomer: "This coupon is only valid for first-time subscribers",
	ReasonInvalid:          "Invalid Coupon",
}

// Message is the user facing text for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return "Invalid Coupon"
}

// Result is the outcome of an eligibility check.
type Result struct {
	Eligible bool
	Reason   Reason
}

// UsageReader answers the subscription history questions eligibility depends on.
type UsageReader interface {
	CountCouponRedemptions(ctx context.Context, code string, statuses []enums.SubscriptionStatus) (int64, error)
	HasUsedCoupon(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	CountUserSubscriptions(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Evaluator runs the ordered coupon checks. It is called once for advisory
// feedback when a coupon is validated and again, authoritatively, right
// before the gateway subscription is created.
type Evaluator struct {
	usage UsageReader
	now   func() time.Time
}

func NewEvaluator(usage UsageReader, now func() time.Time) (*Evaluator, error) {
	if usage == nil {
		return nil, fmt.Errorf("usage reader required")
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{usage: usage, now: now}, nil
}

// Check evaluates coupon for userID, short-circuiting on the first failed rule.
// Lookup failures are returned as errors and never treated as eligible.
func (e *Evaluator) Check(ctx context.Context, coupon catalog.Coupon, userID uuid.UUID) (Result, error) {
	if coupon == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "coupon is required")
	}
	if userID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required for coupon eligibility")
	}

	rules := coupon.Rules()
	code := coupon.Code()

	if rules.Expired(e.now()) {
		return reject(ReasonExpired), nil
	}

	if rules.UsageLimit != nil {
		used, err := e.usage.CountCouponRedemptions(ctx, code, enums.CouponConsumingStatuses)
		if err != nil {
			return Result{}, lookupFailed(err, "count coupon redemptions")
		}
		if used >= int64(*rules.UsageLimit) {
			return reject(ReasonLimitReached), nil
		}
	}

	switch rules.UsageScope {
	case enums.UsageScopeOncePerUser:
		used, err := e.usage.HasUsedCoupon(ctx, userID, code)
		if err != nil {
			return Result{}, lookupFailed(err, "load coupon history")
		}
		if used {
			return reject(ReasonAlreadyUsed), nil
		}
	case enums.UsageScopeFirstTimeOnly:
		prior, err := e.usage.CountUserSubscriptions(ctx, userID)
		if err != nil {
			return Result{}, lookupFailed(err, "count prior subscriptions")
		}
		if prior > 0 {
			return reject(ReasonExistingCustomer), nil
		}
	}

	return Result{Eligible: true}, nil
}

func reject(reason Reason) Result {
	return Result{Eligible: false, Reason: reason}
}

func lookupFailed(err error, op string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "coupon eligibility lookup failed").
		WithDetails(map[string]any{"op": op})
}

// Rejection converts an ineligible result into the typed error returned by checkout.
func Rejection(code string, result Result) error {
	return pkgerrors.New(pkgerrors.CodeIneligible, result.Reason.Message()).
		WithDetails(map[string]any{"coupon": code, "reason": string(result.Reason)})
}
