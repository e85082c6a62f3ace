package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bizvistar/billing-backend/pkg/enums"
)

// NoCoupon is the coupon_used marker for subscriptions created without a code.
const NoCoupon = "none"

// NormalizeCode trims and uppercases a user supplied coupon code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Rules are the redemption constraints shared by every coupon variant.
type Rules struct {
	Active     bool
	ExpiresAt  *time.Time
	UsageLimit *int
	UsageScope enums.UsageScope
}

// Expired reports whether the coupon can no longer be redeemed at now.
// Inactive coupons count as expired.
func (r Rules) Expired(now time.Time) bool {
	if !r.Active {
		return true
	}
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Coupon is the closed set of coupon variants. Switch on the concrete type:
// *PercentDiscount, *TrialPeriod, *OfferApply or *FixedOverride.
type Coupon interface {
	Code() string
	Type() enums.CouponType
	Rules() Rules
	isCoupon()
}

type couponBase struct {
	code  string
	rules Rules
}

func (b couponBase) Code() string { return b.code }
func (b couponBase) Rules() Rules { return b.rules }
func (couponBase) isCoupon()      {}

func newBase(code string, rules Rules) couponBase {
	if rules.UsageScope == "" {
		rules.UsageScope = enums.UsageScopeUnrestricted
	}
	return couponBase{code: NormalizeCode(code), rules: rules}
}

// PercentDiscount takes percentOff of the base price, optionally capped at
// MaxDiscount. The gateway charges the discounted amount through the offer
// configured for the active mode.
type PercentDiscount struct {
	couponBase
	PercentOff  decimal.Decimal
	MaxDiscount *decimal.Decimal
	OfferIDs    map[enums.GatewayMode]string
}

func NewPercentDiscount(code string, rules Rules, percentOff decimal.Decimal, maxDiscount *decimal.Decimal, offerIDs map[enums.GatewayMode]string) *PercentDiscount {
	return &PercentDiscount{couponBase: newBase(code, rules), PercentOff: percentOff, MaxDiscount: maxDiscount, OfferIDs: offerIDs}
}

func (*PercentDiscount) Type() enums.CouponType { return enums.CouponTypePercentDiscount }

// OfferID returns the offer configured for mode.
func (p *PercentDiscount) OfferID(mode enums.GatewayMode) (string, bool) {
	return offerFor(p.OfferIDs, mode)
}

// TrialPeriod defers the first charge by TrialDays.
type TrialPeriod struct {
	couponBase
	TrialDays int
}

func NewTrialPeriod(code string, rules Rules, trialDays int) *TrialPeriod {
	return &TrialPeriod{couponBase: newBase(code, rules), TrialDays: trialDays}
}

func (*TrialPeriod) Type() enums.CouponType { return enums.CouponTypeTrialPeriod }

// OfferApply attaches a gateway offer. The gateway applies the discount; the
// optional percent fields only drive the price shown at checkout.
type OfferApply struct {
	couponBase
	OfferIDs    map[enums.GatewayMode]string
	PercentOff  *decimal.Decimal
	MaxDiscount *decimal.Decimal
}

func NewOfferApply(code string, rules Rules, offerIDs map[enums.GatewayMode]string, percentOff, maxDiscount *decimal.Decimal) *OfferApply {
	return &OfferApply{couponBase: newBase(code, rules), OfferIDs: offerIDs, PercentOff: percentOff, MaxDiscount: maxDiscount}
}

func (*OfferApply) Type() enums.CouponType { return enums.CouponTypeOfferApply }

// OfferID returns the offer configured for mode.
func (o *OfferApply) OfferID(mode enums.GatewayMode) (string, bool) {
	return offerFor(o.OfferIDs, mode)
}

func offerFor(ids map[enums.GatewayMode]string, mode enums.GatewayMode) (string, bool) {
	id, ok := ids[mode]
	return id, ok && id != ""
}

// FixedOverride replaces the plan's monthly price outright and may bill
// against dedicated gateway plans.
type FixedOverride struct {
	couponBase
	MonthlyPrices  map[string]decimal.Decimal
	GatewayPlanIDs map[enums.GatewayMode]map[string]map[enums.BillingCycle]string
	// OneYearTerm caps the subscription at twelve months of billing.
	OneYearTerm bool
}

func NewFixedOverride(code string, rules Rules, monthlyPrices map[string]decimal.Decimal, oneYearTerm bool) *FixedOverride {
	return &FixedOverride{couponBase: newBase(code, rules), MonthlyPrices: monthlyPrices, OneYearTerm: oneYearTerm}
}

func (*FixedOverride) Type() enums.CouponType { return enums.CouponTypeFixedOverride }

// MonthlyPrice returns the override price for planName.
func (f *FixedOverride) MonthlyPrice(planName string) (decimal.Decimal, bool) {
	price, ok := f.MonthlyPrices[planName]
	return price, ok
}

// GatewayPlanID returns the override gateway plan for the plan and cycle, if any.
func (f *FixedOverride) GatewayPlanID(mode enums.GatewayMode, planName string, cycle enums.BillingCycle) (string, bool) {
	byPlan, ok := f.GatewayPlanIDs[mode]
	if !ok {
		return "", false
	}
	id, ok := byPlan[planName][cycle]
	return id, ok && id != ""
}
