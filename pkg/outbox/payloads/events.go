package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/pkg/enums"
)

// SubscriptionEvent describes a subscription entering a new local status.
type SubscriptionEvent struct {
	SubscriptionID        uuid.UUID                `json:"subscription_id"`
	GatewaySubscriptionID string                   `json:"gateway_subscription_id"`
	UserID                uuid.UUID                `json:"user_id"`
	PlanName              string                   `json:"plan_name"`
	BillingCycle          enums.BillingCycle       `json:"billing_cycle"`
	CouponUsed            string                   `json:"coupon_used"`
	Status                enums.SubscriptionStatus `json:"status"`
	PreviousStatus        enums.SubscriptionStatus `json:"previous_status,omitempty"`
	Source                string                   `json:"source,omitempty"`
	ChangedAt             time.Time                `json:"changed_at"`
}

// PaymentVerifiedEvent records a payment callback whose signature matched.
type PaymentVerifiedEvent struct {
	SubscriptionID        uuid.UUID `json:"subscription_id"`
	GatewaySubscriptionID string    `json:"gateway_subscription_id"`
	PaymentID             string    `json:"payment_id"`
	UserID                uuid.UUID `json:"user_id"`
	VerifiedAt            time.Time `json:"verified_at"`
}
