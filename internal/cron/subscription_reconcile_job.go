package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/bizvistar/billing-backend/internal/subscriptions"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

const (
	defaultReconcileLimit    = 100
	defaultReconcileLookback = 30 * 24 * time.Hour
)

type reconcileLister interface {
	ListForReconcile(ctx context.Context, since time.Time, limit int) ([]models.Subscription, error)
}

type gatewayFetcher interface {
	FetchSubscription(ctx context.Context, gatewaySubscriptionID string) (*subscriptions.GatewaySubscription, error)
}

type statusTransitioner interface {
	Transition(ctx context.Context, input subscriptions.TransitionInput) (*subscriptions.TransitionResult, error)
}

type websiteUnpublisher interface {
	UnpublishByUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

// SubscriptionReconcileJobParams configures the gateway status sync job.
type SubscriptionReconcileJobParams struct {
	Logger        *logger.Logger
	Subscriptions reconcileLister
	Gateway       gatewayFetcher
	Transitioner  statusTransitioner
	Websites      websiteUnpublisher
	Limit         int
	Lookback      time.Duration
	Now           func() time.Time
}

// NewSubscriptionReconcileJob builds a reconciliation cron job.
func NewSubscriptionReconcileJob(params SubscriptionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Transitioner == nil {
		return nil, fmt.Errorf("subscription transitioner required")
	}
	if params.Websites == nil {
		return nil, fmt.Errorf("website repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultReconcileLookback
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &subscriptionReconcileJob{
		logg:         params.Logger,
		subs:         params.Subscriptions,
		gateway:      params.Gateway,
		transitioner: params.Transitioner,
		websites:     params.Websites,
		now:          now,
		limit:        limit,
		lookback:     lookback,
	}, nil
}

type subscriptionReconcileJob struct {
	logg         *logger.Logger
	subs         reconcileLister
	gateway      gatewayFetcher
	transitioner statusTransitioner
	websites     websiteUnpublisher
	now          func() time.Time
	limit        int
	lookback     time.Duration
}

func (j *subscriptionReconcileJob) Name() string { return "subscription-reconcile" }

func (j *subscriptionReconcileJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	candidates, err := j.subs.ListForReconcile(ctx, since, j.limit)
	if err != nil {
		return fmt.Errorf("list subscriptions for reconciliation: %w", err)
	}
	var errs error
	changed := 0
	for i := range candidates {
		moved, err := j.reconcileSubscription(ctx, &candidates[i])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if moved {
			changed++
		}
	}
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"changed":    changed,
		"failed":     len(multierr.Errors(errs)),
	})
	j.logg.Info(reportCtx, "subscription reconcile loop complete")
	return errs
}

func (j *subscriptionReconcileJob) reconcileSubscription(ctx context.Context, sub *models.Subscription) (bool, error) {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"subscription_id":         sub.ID,
		"gateway_subscription_id": sub.GatewaySubscriptionID,
	})
	logCtx = j.logg.WithUserID(logCtx, sub.UserID.String())
	if strings.TrimSpace(sub.GatewaySubscriptionID) == "" {
		j.logg.Info(logCtx, "subscription missing gateway id; skipping")
		return false, nil
	}
	remote, err := j.gateway.FetchSubscription(logCtx, sub.GatewaySubscriptionID)
	if err != nil {
		return false, fmt.Errorf("fetch gateway subscription %s: %w", sub.GatewaySubscriptionID, err)
	}
	if remote == nil {
		j.logg.Info(logCtx, "gateway subscription not found; skipping")
		return false, nil
	}
	status, ok := enums.SubscriptionStatusFromGateway(remote.Status)
	if !ok {
		j.logg.Warn(j.logg.WithField(logCtx, "gateway_status", remote.Status), "unmapped gateway status; skipping")
		return false, nil
	}
	if status == sub.Status || !subscriptions.CanTransition(sub.Status, status) {
		return false, nil
	}

	res, err := j.transitioner.Transition(logCtx, subscriptions.TransitionInput{
		GatewaySubscriptionID: sub.GatewaySubscriptionID,
		Status:                status,
		Source:                subscriptions.SourceReconcile,
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("transition %s: %w", sub.GatewaySubscriptionID, err)
	}
	if !res.Changed {
		return false, nil
	}
	if status == enums.SubscriptionStatusCanceled {
		unpublished, err := j.websites.UnpublishByUser(logCtx, sub.UserID, j.now().UTC())
		if err != nil {
			return true, fmt.Errorf("unpublish websites for %s: %w", sub.UserID, err)
		}
		logCtx = j.logg.WithField(logCtx, "websites_unpublished", unpublished)
	}
	j.logg.Info(j.logg.WithFields(logCtx, map[string]any{
		"from": res.PreviousStatus,
		"to":   status,
	}), "subscription reconciled")
	return true, nil
}
