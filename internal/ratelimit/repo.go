package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bizvistar/billing-backend/internal/repo"
	"github.com/bizvistar/billing-backend/pkg/db/models"
)

// Repository persists rate limit attempt logs.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// CountSince counts attempts for user and action at or after since.
func (r *Repository) CountSince(ctx context.Context, userID uuid.UUID, action string, since time.Time) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.RateLimitLog{}).
		Where("user_id = ? AND action = ? AND created_at >= ?", userID, action, since).
		Count(&count).Error
	return count, err
}

// Insert appends one attempt row.
func (r *Repository) Insert(ctx context.Context, row *models.RateLimitLog) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.DB(ctx).Create(row).Error
}

// DeleteBefore purges attempts older than cutoff and returns the number removed.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.PurgeBefore(ctx, &models.RateLimitLog{}, "created_at", cutoff)
}
