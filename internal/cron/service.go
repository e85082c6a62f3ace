package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
)

const (
	defaultInterval = 15 * time.Minute
	releaseTimeout  = 5 * time.Second
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	Now      func() time.Time
}

// Service ticks at a fixed interval and runs whichever registered jobs are
// due, holding the distributed lock for the whole cycle.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      params.Now,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// RunOnce executes a single locked cycle.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithField(ctx, "interval", s.interval.String()), "cron service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !held {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer s.release(ctx)

	due := s.registry.Due(s.now())
	if len(due) == 0 {
		s.logg.Debug(ctx, "no jobs due")
		return nil
	}

	failed := 0
	for _, job := range due {
		if err := s.runJob(ctx, job); err != nil {
			failed++
			continue
		}
		s.registry.MarkRan(job.Name(), s.now())
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"due":        len(due),
		"failed":     failed,
		"registered": s.registry.Len(),
	}), "scheduled run complete")
	return nil
}

// release must still reach redis after ctx is canceled by shutdown.
func (s *Service) release(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.lock.Release(releaseCtx); err != nil {
		s.logg.Error(ctx, "cron lock release failed", err)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})

	start := s.now()
	err := job.Run(ctx)
	end := s.now()
	s.metrics.RecordRun(job.Name(), end.Sub(start), end, err)

	ctx = s.logg.WithField(ctx, "duration_ms", end.Sub(start).Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return err
	}
	s.logg.Info(ctx, "job completed")
	return nil
}
