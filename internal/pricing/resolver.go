package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bizvistar/billing-backend/internal/catalog"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
)

// ErrInvalidPlan marks an unknown plan name or billing cycle.
var ErrInvalidPlan = errors.New("invalid plan")

var hundred = decimal.NewFromInt(100)

// Quote is the price pair shown at checkout. Amounts are unrounded; format
// with StringFixed(2) at the edge.
type Quote struct {
	DisplayPrice decimal.Decimal
	StruckPrice  decimal.Decimal
	Discount     decimal.Decimal
}

// Resolver prices plans and coupons against an injected catalog.
type Resolver struct {
	catalog *catalog.Catalog
}

func NewResolver(cat *catalog.Catalog) (*Resolver, error) {
	if cat == nil {
		return nil, fmt.Errorf("catalog required")
	}
	return &Resolver{catalog: cat}, nil
}

// ResolvePlan validates raw plan and cycle input.
func (r *Resolver) ResolvePlan(planName, cycle string) (catalog.Plan, enums.BillingCycle, error) {
	parsedCycle, err := enums.ParseBillingCycle(cycle)
	if err != nil {
		return catalog.Plan{}, "", invalidPlan(planName, cycle)
	}
	plan, ok := r.catalog.Plan(planName)
	if !ok {
		return catalog.Plan{}, "", invalidPlan(planName, cycle)
	}
	return plan, parsedCycle, nil
}

// ResolveBasePrice returns the list price for a plan and cycle. Yearly is
// exactly twelve monthly prices.
func (r *Resolver) ResolveBasePrice(planName string, cycle enums.BillingCycle) (decimal.Decimal, error) {
	plan, parsedCycle, err := r.ResolvePlan(planName, string(cycle))
	if err != nil {
		return decimal.Decimal{}, err
	}
	return basePrice(plan.MonthlyPrice, parsedCycle), nil
}

// ApplyCoupon prices basePrice under coupon. A nil coupon yields the base price.
func (r *Resolver) ApplyCoupon(base decimal.Decimal, planName string, cycle enums.BillingCycle, coupon catalog.Coupon) Quote {
	quote := Quote{DisplayPrice: base, StruckPrice: base, Discount: decimal.Zero}

	switch c := coupon.(type) {
	case nil:
	case *catalog.PercentDiscount:
		quote = percentQuote(base, c.PercentOff, c.MaxDiscount)
	case *catalog.TrialPeriod:
		quote.DisplayPrice = decimal.Zero
		quote.Discount = base
	case *catalog.OfferApply:
		if c.PercentOff != nil {
			quote = percentQuote(base, *c.PercentOff, c.MaxDiscount)
		}
	case *catalog.FixedOverride:
		plan, ok := r.catalog.Plan(planName)
		if !ok {
			break
		}
		if monthly, ok := c.MonthlyPrice(plan.Name); ok {
			quote.DisplayPrice = basePrice(monthly, cycle)
			quote.Discount = base.Sub(quote.DisplayPrice)
		}
	}
	return quote
}

// Quote resolves the base price and applies coupon in one step. Callers must
// pass only server-side inputs; client price fields are never consulted.
func (r *Resolver) Quote(planName string, cycle enums.BillingCycle, coupon catalog.Coupon) (Quote, error) {
	base, err := r.ResolveBasePrice(planName, cycle)
	if err != nil {
		return Quote{}, err
	}
	return r.ApplyCoupon(base, planName, cycle, coupon), nil
}

// BasePrice is the list price of an already resolved plan.
func BasePrice(plan catalog.Plan, cycle enums.BillingCycle) decimal.Decimal {
	return basePrice(plan.MonthlyPrice, cycle)
}

func basePrice(monthly decimal.Decimal, cycle enums.BillingCycle) decimal.Decimal {
	return monthly.Mul(decimal.NewFromInt(int64(cycle.Months())))
}

func percentQuote(base, percentOff decimal.Decimal, maxDiscount *decimal.Decimal) Quote {
	discount := base.Mul(percentOff).Div(hundred)
	if maxDiscount != nil && discount.GreaterThan(*maxDiscount) {
		discount = *maxDiscount
	}
	if discount.GreaterThan(base) {
		discount = base
	}
	return Quote{DisplayPrice: base.Sub(discount), StruckPrice: base, Discount: discount}
}

func invalidPlan(planName, cycle string) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidPlan, "plan not found in configuration").
		WithDetails(map[string]any{"plan": planName, "billingCycle": cycle})
}
