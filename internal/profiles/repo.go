package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bizvistar/billing-backend/internal/repo"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/types"
)

// Repository persists subscriber profiles.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindByID loads a profile by user id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return repo.First[models.Profile](r.DB(ctx), "id = ?", id)
}

// UpsertBillingDetails writes full_name and billing_address, creating the
// profile row when the user has none yet.
func (r *Repository) UpsertBillingDetails(ctx context.Context, id uuid.UUID, addr types.BillingAddress, at time.Time) error {
	profile := &models.Profile{
		ID:             id,
		FullName:       addr.FullName,
		BillingAddress: &addr,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "billing_address", "updated_at"}),
		}).
		Create(profile).Error
}
