package subscriptions

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/internal/catalog"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
)

// DefaultTotalCount keeps a subscription renewing for ten years of monthly cycles.
const DefaultTotalCount = 120

// oneYearTermMonths bounds coupons that only cover the first year.
const oneYearTermMonths = 12

var (
	// ErrOfferUnavailable marks a coupon with no offer id for the active gateway mode.
	ErrOfferUnavailable = errors.New("offer unavailable")
	// ErrGatewayPlanMissing marks a plan with no gateway plan id for the mode and cycle.
	ErrGatewayPlanMissing = errors.New("gateway plan not configured")
)

// Notes are echoed back by the gateway on every webhook for the subscription.
type Notes struct {
	UserID       string
	CouponUsed   string
	PlanName     string
	BillingCycle string
}

// Map renders notes in the gateway's key format.
func (n Notes) Map() map[string]string {
	return map[string]string{
		"user_id":       n.UserID,
		"coupon_used":   n.CouponUsed,
		"plan_name":     n.PlanName,
		"billing_cycle": n.BillingCycle,
	}
}

// GatewaySubscriptionRequest is the create call sent to the billing gateway.
type GatewaySubscriptionRequest struct {
	PlanID         string
	CustomerNotify bool
	TotalCount     int
	OfferID        string
	StartAt        *time.Time
	Notes          Notes
}

// Build assembles the gateway request for plan, cycle and an optional coupon.
// It is pure: identical inputs always produce identical requests.
func Build(plan catalog.Plan, cycle enums.BillingCycle, coupon catalog.Coupon, userID uuid.UUID, mode enums.GatewayMode, now time.Time) (GatewaySubscriptionRequest, error) {
	planID, ok := plan.GatewayPlanID(mode, cycle)
	if !ok {
		return GatewaySubscriptionRequest{}, pkgerrors.Wrap(pkgerrors.CodeInternal, ErrGatewayPlanMissing, "plan is not configured for the payment gateway").
			WithDetails(map[string]any{"plan": plan.Name, "billingCycle": string(cycle), "mode": string(mode)})
	}

	req := GatewaySubscriptionRequest{
		PlanID:         planID,
		CustomerNotify: true,
		TotalCount:     DefaultTotalCount,
		Notes: Notes{
			UserID:       userID.String(),
			CouponUsed:   catalog.NoCoupon,
			PlanName:     plan.Name,
			BillingCycle: string(cycle),
		},
	}

	switch c := coupon.(type) {
	case nil:
		return req, nil
	case *catalog.PercentDiscount:
		offerID, err := requireOffer(c, mode)
		if err != nil {
			return GatewaySubscriptionRequest{}, err
		}
		req.OfferID = offerID
	case *catalog.TrialPeriod:
		start := now.UTC().Add(time.Duration(c.TrialDays) * 24 * time.Hour)
		req.StartAt = &start
	case *catalog.OfferApply:
		offerID, err := requireOffer(c, mode)
		if err != nil {
			return GatewaySubscriptionRequest{}, err
		}
		req.OfferID = offerID
	case *catalog.FixedOverride:
		if overrideID, ok := c.GatewayPlanID(mode, plan.Name, cycle); ok {
			req.PlanID = overrideID
		}
		if c.OneYearTerm {
			req.TotalCount = oneYearTermMonths / cycle.Months()
		}
	}
	req.Notes.CouponUsed = coupon.Code()
	return req, nil
}

type offerCoupon interface {
	Code() string
	OfferID(mode enums.GatewayMode) (string, bool)
}

func requireOffer(c offerCoupon, mode enums.GatewayMode) (string, error) {
	offerID, ok := c.OfferID(mode)
	if !ok {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, ErrOfferUnavailable, "offer is not available for this plan").
			WithDetails(map[string]any{"coupon": c.Code(), "mode": string(mode)})
	}
	return offerID, nil
}
