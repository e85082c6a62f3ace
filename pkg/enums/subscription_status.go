package enums

// SubscriptionStatus is the locally tracked subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusCreated  SubscriptionStatus = "created"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusCreated,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
	SubscriptionStatusCanceled,
}

// CouponConsumingStatuses are the states that count against a coupon's usage limit.
var CouponConsumingStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) IsValid() bool { return known(s, validSubscriptionStatuses) }

func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return parse("subscription status", value, validSubscriptionStatuses)
}

// SubscriptionStatusFromGateway maps a gateway subscription state onto the local status.
func SubscriptionStatusFromGateway(value string) (SubscriptionStatus, bool) {
	switch value {
	case "created", "authenticated":
		return SubscriptionStatusCreated, true
	case "active":
		return SubscriptionStatusActive, true
	case "pending":
		return SubscriptionStatusPastDue, true
	case "halted", "cancelled", "completed", "expired":
		return SubscriptionStatusCanceled, true
	default:
		return "", false
	}
}
