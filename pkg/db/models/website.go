package models

import (
	"time"

	"github.com/google/uuid"
)

// Website is the published storefront owned by a subscriber.
type Website struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	IsPublished bool      `gorm:"column:is_published;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
