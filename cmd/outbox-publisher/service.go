package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
	"github.com/bizvistar/billing-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	Metrics          *metrics.OutboxMetrics
	PublisherFactory publisherFactory
	// Wake cuts an idle poll short. Nil keeps pure polling.
	Wake <-chan struct{}
	Now  func() time.Time
}

// Service drains outbox_events onto Pub/Sub. Each row is marked inside the
// transaction that locked it, so a crash mid-batch replays only unmarked rows.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	pubsub       pubSubClient
	registry     registryResolver
	metrics      *metrics.OutboxMetrics
	topics       *topicPublishers
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	wake         <-chan struct{}
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config.Outbox

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		pubsub:       params.PubSub,
		registry:     params.Registry,
		metrics:      params.Metrics,
		topics:       newTopicPublishers(factory),
		batchSize:    positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		wake:         params.Wake,
		now:          now,
	}, nil
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

// Run polls until ctx is canceled. Batch errors back off exponentially; an
// empty poll waits one interval.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		s.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	delay := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			delay = nextBackoff(delay, s.pollInterval, maxBackoff)
			err = sleep(ctx, withJitter(delay))
		case processed:
			delay = s.pollInterval
		default:
			delay = s.pollInterval
			err = idle(ctx, withJitter(delay), s.wake)
		}
		if err != nil {
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var handled int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := s.handleEvent(ctx, tx, event); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	if handled > 0 {
		s.metrics.Batch()
	}
	return handled > 0, err
}

// handleEvent publishes one row and records the outcome. Only bookkeeping
// write failures are returned; they roll back the whole batch.
func (s *Service) handleEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	logCtx := s.eventContext(ctx, event, resolved)
	if err != nil {
		return s.park(logCtx, tx, event, err)
	}

	if err := s.publish(ctx, event, resolved); err != nil {
		if registry.IsNonRetryable(err) {
			return s.park(logCtx, tx, event, err)
		}
		attempt := event.AttemptCount + 1
		if attempt >= s.maxAttempts {
			return s.park(logCtx, tx, event, fmt.Errorf("max publish attempts reached: %w", err))
		}
		logCtx = s.logg.WithFields(logCtx, map[string]any{"attempt_count": attempt, "error": err.Error()})
		s.logg.Warn(logCtx, "outbox publish failed")
		if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
		}
		s.metrics.Handled(string(event.EventType), metrics.OutboxRetry, 0)
		return nil
	}

	if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	var lag time.Duration
	if !event.CreatedAt.IsZero() {
		lag = s.now().Sub(event.CreatedAt)
	}
	s.metrics.Handled(string(event.EventType), metrics.OutboxPublished, lag)
	s.logg.Info(logCtx, "outbox event published")
	return nil
}

// park marks the row so FetchUnpublishedForPublish never returns it again.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, cause error) error {
	s.logg.Warn(s.logg.WithField(ctx, "error", cause.Error()), "outbox event will not be retried")
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.Handled(string(event.EventType), metrics.OutboxTerminal, 0)
	return nil
}

func (s *Service) eventContext(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) context.Context {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	ctx = s.logg.WithFields(ctx, fields)
	if resolved == nil {
		return ctx
	}
	ctx = s.logg.WithField(ctx, "topic", resolved.Descriptor.Topic)
	return s.logg.WithEventID(ctx, resolved.Envelope.EventID)
}
