package enums

// CouponType names the variant of a coupon definition.
type CouponType string

const (
	CouponTypePercentDiscount CouponType = "percent_discount"
	CouponTypeTrialPeriod     CouponType = "trial_period"
	CouponTypeOfferApply      CouponType = "offer_apply"
	CouponTypeFixedOverride   CouponType = "fixed_override"
)

var validCouponTypes = []CouponType{
	CouponTypePercentDiscount,
	CouponTypeTrialPeriod,
	CouponTypeOfferApply,
	CouponTypeFixedOverride,
}

// String implements fmt.Stringer.
func (c CouponType) String() string {
	return string(c)
}

func (c CouponType) IsValid() bool { return known(c, validCouponTypes) }

func ParseCouponType(value string) (CouponType, error) {
	return parse("coupon type", value, validCouponTypes)
}

// UsageScope restricts who may redeem a coupon.
type UsageScope string

const (
	UsageScopeUnrestricted  UsageScope = "unrestricted"
	UsageScopeOncePerUser   UsageScope = "once_per_user"
	UsageScopeFirstTimeOnly UsageScope = "first_time_only"
)

var validUsageScopes = []UsageScope{
	UsageScopeUnrestricted,
	UsageScopeOncePerUser,
	UsageScopeFirstTimeOnly,
}

func (u UsageScope) IsValid() bool { return known(u, validUsageScopes) }

// ParseUsageScope converts raw input into a UsageScope. Empty input means unrestricted.
func ParseUsageScope(value string) (UsageScope, error) {
	if value == "" {
		return UsageScopeUnrestricted, nil
	}
	return parse("usage scope", value, validUsageScopes)
}
