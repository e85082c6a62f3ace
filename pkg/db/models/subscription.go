package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/pkg/enums"
)

// Subscription mirrors a gateway subscription created through checkout.
type Subscription struct {
	ID                    uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	GatewaySubscriptionID string                   `gorm:"column:gateway_subscription_id;not null;uniqueIndex"`
	GatewayMode           enums.GatewayMode        `gorm:"column:gateway_mode;not null"`
	PlanID                string                   `gorm:"column:plan_id;not null"`
	PlanName              string                   `gorm:"column:plan_name;not null"`
	BillingCycle          enums.BillingCycle       `gorm:"column:billing_cycle;not null"`
	Status                enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;index"`
	CouponUsed            string                   `gorm:"column:coupon_used;not null;index"`
	TotalBillingCycles    int                      `gorm:"column:total_billing_cycles;not null"`
	OfferID               *string                  `gorm:"column:offer_id"`
	StartAt               *time.Time               `gorm:"column:start_at"`
	ActivatedAt           *time.Time               `gorm:"column:activated_at"`
	CanceledAt            *time.Time               `gorm:"column:canceled_at"`
	Metadata              json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	CreatedAt             time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
