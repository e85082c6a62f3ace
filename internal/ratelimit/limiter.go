package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

// ActionSubscriptionCreate tags subscription creation attempts in the log.
const ActionSubscriptionCreate = "subscription_create"

const (
	defaultWindow = 60 * time.Minute
	defaultLimit  = 10
)

type attemptStore interface {
	CountSince(ctx context.Context, userID uuid.UUID, action string, since time.Time) (int64, error)
	Insert(ctx context.Context, row *models.RateLimitLog) error
}

// LimiterParams configures a Limiter.
type LimiterParams struct {
	Store  attemptStore
	Window time.Duration
	Limit  int
	Now    func() time.Time
	Logger *logger.Logger
}

// Limiter is a fixed-window attempt limiter backed by the rate_limit_logs
// table. Reads fail open: a broken count query allows the attempt.
type Limiter struct {
	store  attemptStore
	window time.Duration
	limit  int
	now    func() time.Time
	logg   *logger.Logger
}

func NewLimiter(params LimiterParams) (*Limiter, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("rate limit store required")
	}
	if params.Window <= 0 {
		params.Window = defaultWindow
	}
	if params.Limit <= 0 {
		params.Limit = defaultLimit
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Limiter{
		store:  params.Store,
		window: params.Window,
		limit:  params.Limit,
		now:    params.Now,
		logg:   params.Logger,
	}, nil
}

// Allow reports whether userID may make another subscription attempt.
func (l *Limiter) Allow(ctx context.Context, userID uuid.UUID) bool {
	since := l.now().UTC().Add(-l.window)
	count, err := l.store.CountSince(ctx, userID, ActionSubscriptionCreate, since)
	if err != nil {
		if l.logg != nil {
			logCtx := l.logg.WithField(l.logg.WithUserID(ctx, userID.String()), "error", err.Error())
			l.logg.Warn(logCtx, "rate limit check failed, allowing attempt")
		}
		return true
	}
	return count < int64(l.limit)
}

// Record appends an attempt. Failures are logged and swallowed.
func (l *Limiter) Record(ctx context.Context, userID uuid.UUID, ip string) {
	row := &models.RateLimitLog{
		UserID:    userID,
		IP:        ip,
		Action:    ActionSubscriptionCreate,
		CreatedAt: l.now().UTC(),
	}
	if err := l.store.Insert(ctx, row); err != nil && l.logg != nil {
		l.logg.Error(l.logg.WithUserID(ctx, userID.String()), "rate limit log insert failed", err)
	}
}
