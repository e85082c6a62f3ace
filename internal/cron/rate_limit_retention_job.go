package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/bizvistar/billing-backend/pkg/logger"
)

const defaultRateLimitRetention = 7 * 24 * time.Hour

type rateLimitLogPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RateLimitRetentionJobParams struct {
	Logger     *logger.Logger
	Repository rateLimitLogPurger
	Retention  time.Duration
}

func NewRateLimitRetentionJob(params RateLimitRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("rate limit repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRateLimitRetention
	}
	return &rateLimitRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type rateLimitRetentionJob struct {
	logg      *logger.Logger
	repo      rateLimitLogPurger
	retention time.Duration
	now       func() time.Time
}

func (j *rateLimitRetentionJob) Name() string { return "rate-limit-retention" }

func (j *rateLimitRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("rate limit retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "rate limit log cleanup complete")
	return nil
}
