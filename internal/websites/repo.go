package websites

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bizvistar/billing-backend/internal/repo"
	"github.com/bizvistar/billing-backend/pkg/db/models"
)

// Repository toggles storefront publication. Everything else about a website
// belongs to the editor.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{Base: r.Bind(tx)}
}

// UnpublishByUser takes every published site owned by userID offline and
// returns how many changed.
func (r *Repository) UnpublishByUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Website{}).
		Where("user_id = ? AND is_published = ?", userID, true).
		Updates(map[string]any{"is_published": false, "updated_at": at})
	return res.RowsAffected, res.Error
}

// CountPublished counts the user's live sites.
func (r *Repository) CountPublished(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Website{}).
		Where("user_id = ? AND is_published = ?", userID, true).
		Count(&count).Error
	return count, err
}
