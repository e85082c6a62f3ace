package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bizvistar/billing-backend/internal/catalog"
	"github.com/bizvistar/billing-backend/internal/eligibility"
	"github.com/bizvistar/billing-backend/internal/pricing"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
)

type couponEvaluator interface {
	Check(ctx context.Context, coupon catalog.Coupon, userID uuid.UUID) (eligibility.Result, error)
}

// Service answers the read-only checkout page queries.
type Service interface {
	Details(ctx context.Context, planName, billingCycle string) (pricing.CheckoutDetails, error)
	ValidateCoupon(ctx context.Context, userID uuid.UUID, input ValidateCouponInput) (*CouponValidation, error)
}

// ValidateCouponInput is a coupon typed on the checkout page. Plan and cycle
// are optional and only enable the price preview.
type ValidateCouponInput struct {
	Code         string
	PlanName     string
	BillingCycle string
}

// CouponValidation is advisory. Subscription creation re-checks eligibility.
type CouponValidation struct {
	Valid        bool
	Code         string
	Type         enums.CouponType
	Reason       eligibility.Reason
	Message      string
	PercentOff   *decimal.Decimal
	MaxDiscount  *decimal.Decimal
	TrialDays    int
	DisplayPrice *decimal.Decimal
	StruckPrice  *decimal.Decimal
}

type service struct {
	catalog   *catalog.Catalog
	resolver  *pricing.Resolver
	evaluator couponEvaluator
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(cat *catalog.Catalog, resolver *pricing.Resolver, evaluator couponEvaluator, m *metrics.CheckoutMetrics, logg *logger.Logger, now func() time.Time) (Service, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("price resolver required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("eligibility evaluator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{
		catalog:   cat,
		resolver:  resolver,
		evaluator: evaluator,
		metrics:   m,
		logg:      logg,
		now:       now,
	}, nil
}

func (s *service) Details(ctx context.Context, planName, billingCycle string) (pricing.CheckoutDetails, error) {
	if strings.TrimSpace(planName) == "" || strings.TrimSpace(billingCycle) == "" {
		return pricing.CheckoutDetails{}, pkgerrors.New(pkgerrors.CodeValidation, "plan and billing cycle are required")
	}
	return s.resolver.CheckoutDetails(planName, billingCycle, s.now().UTC())
}

func (s *service) ValidateCoupon(ctx context.Context, userID uuid.UUID, input ValidateCouponInput) (*CouponValidation, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	code := catalog.NormalizeCode(input.Code)
	coupon, ok := s.catalog.Coupon(code)
	if !ok {
		s.metrics.CouponValidated(string(eligibility.ReasonInvalid))
		return rejected(code, nil, eligibility.ReasonInvalid), nil
	}

	result, err := s.evaluator.Check(ctx, coupon, userID)
	if err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "coupon eligibility check failed", err)
		return nil, err
	}
	if !result.Eligible {
		s.metrics.CouponValidated(string(result.Reason))
		return rejected(code, coupon, result.Reason), nil
	}

	out := &CouponValidation{
		Valid: true,
		Code:  coupon.Code(),
		Type:  coupon.Type(),
	}
	switch c := coupon.(type) {
	case *catalog.PercentDiscount:
		percent := c.PercentOff
		out.PercentOff = &percent
		out.MaxDiscount = c.MaxDiscount
	case *catalog.TrialPeriod:
		out.TrialDays = c.TrialDays
	case *catalog.OfferApply:
		out.PercentOff = c.PercentOff
		out.MaxDiscount = c.MaxDiscount
	case *catalog.FixedOverride:
	}

	if strings.TrimSpace(input.PlanName) != "" && strings.TrimSpace(input.BillingCycle) != "" {
		plan, cycle, err := s.resolver.ResolvePlan(input.PlanName, input.BillingCycle)
		if err != nil {
			return nil, err
		}
		quote := s.resolver.ApplyCoupon(pricing.BasePrice(plan, cycle), plan.Name, cycle, coupon)
		out.DisplayPrice = &quote.DisplayPrice
		out.StruckPrice = &quote.StruckPrice
	}

	s.metrics.CouponValidated("valid")
	return out, nil
}

func rejected(code string, coupon catalog.Coupon, reason eligibility.Reason) *CouponValidation {
	out := &CouponValidation{
		Valid:   false,
		Code:    code,
		Reason:  reason,
		Message: reason.Message(),
	}
	if coupon != nil {
		out.Type = coupon.Type()
	}
	return out
}
