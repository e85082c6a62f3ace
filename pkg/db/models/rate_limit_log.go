package models

import (
	"time"

	"github.com/google/uuid"
)

// RateLimitLog is one recorded subscription creation attempt.
type RateLimitLog struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_rate_limit_logs_user_created"`
	IP        string    `gorm:"column:ip"`
	Action    string    `gorm:"column:action;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_rate_limit_logs_user_created"`
}
