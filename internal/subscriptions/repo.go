package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bizvistar/billing-backend/internal/repo"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/enums"
	"github.com/bizvistar/billing-backend/pkg/pagination"
)

// Repository persists subscriptions and answers coupon usage queries.
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

func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	return r.DB(ctx).Create(sub).Error
}

// FindByGatewayID loads a subscription by its gateway id. Missing rows return
// gorm.ErrRecordNotFound.
func (r *Repository) FindByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*models.Subscription, error) {
	return repo.First[models.Subscription](r.DB(ctx), "gateway_subscription_id = ?", gatewaySubscriptionID)
}

// FindByGatewayIDForUpdate is FindByGatewayID with a row lock; use inside a transaction.
func (r *Repository) FindByGatewayIDForUpdate(ctx context.Context, gatewaySubscriptionID string) (*models.Subscription, error) {
	return repo.First[models.Subscription](r.Locked(ctx), "gateway_subscription_id = ?", gatewaySubscriptionID)
}

// UpdateStatus moves a subscription to status and stamps the matching timestamp.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubscriptionStatus, at time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	switch status {
	case enums.SubscriptionStatusActive:
		updates["activated_at"] = gorm.Expr("COALESCE(activated_at, ?)", at)
	case enums.SubscriptionStatusCanceled:
		updates["canceled_at"] = at
	}
	return r.DB(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListForReconcile returns non-canceled subscriptions created since the cutoff,
// least recently touched first.
func (r *Repository) ListForReconcile(ctx context.Context, since time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	var subs []models.Subscription
	err := r.DB(ctx).
		Where("status <> ? AND created_at >= ?", enums.SubscriptionStatusCanceled, since).
		Order("updated_at ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// ListByUser returns up to limit of the user's subscriptions, newest first,
// starting after cursor when one is given.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Subscription, error) {
	query := r.DB(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var subs []models.Subscription
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// CountCouponRedemptions counts subscriptions in statuses that used code.
func (r *Repository) CountCouponRedemptions(ctx context.Context, code string, statuses []enums.SubscriptionStatus) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("coupon_used = ? AND status IN ?", code, statuses).
		Count(&count).Error
	return count, err
}

// HasUsedCoupon reports whether any of the user's subscriptions, in any status,
// was created with code.
func (r *Repository) HasUsedCoupon(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ? AND coupon_used = ?", userID, code).
		Count(&count).Error
	return count > 0, err
}

// CountUserSubscriptions counts every subscription the user has, in any status.
func (r *Repository) CountUserSubscriptions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
