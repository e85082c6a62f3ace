package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/pkg/types"
)

// Profile holds the subscriber's billing identity. ID equals the auth user id.
type Profile struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	FullName       string                `gorm:"column:full_name"`
	BillingAddress *types.BillingAddress `gorm:"column:billing_address;type:jsonb"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
