package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bizvistar/billing-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	// matches the publisher's default attempt cap, where rows are parked
	defaultOutboxParkedAttempts = 10
)

// OutboxRetentionJobParams configures the outbox purge job.
type OutboxRetentionJobParams struct {
	Logger         *logger.Logger
	DB             txRunner
	Repository     outboxPurger
	Retention      time.Duration
	ParkedAttempts int
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// NewOutboxRetentionJob removes published and parked outbox rows older than
// the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	parked := params.ParkedAttempts
	if parked <= 0 {
		parked = defaultOutboxParkedAttempts
	}
	return &outboxRetentionJob{
		logg:           params.Logger,
		db:             params.DB,
		repo:           params.Repository,
		retention:      retention,
		parkedAttempts: parked,
		now:            time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg           *logger.Logger
	db             txRunner
	repo           outboxPurger
	retention      time.Duration
	parkedAttempts int
	now            func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.parkedAttempts)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"parked_attempts": j.parkedAttempts,
		"rows_deleted":    deleted,
	}), "outbox retention cleanup complete")
	return nil
}
