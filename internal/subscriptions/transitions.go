package subscriptions

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/bizvistar/billing-backend/pkg/db"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/outbox"
	"github.com/bizvistar/billing-backend/pkg/outbox/payloads"
)

// Transition sources recorded on lifecycle events.
const (
	SourcePaymentVerify = "payment_verify"
	SourceWebhook       = "webhook"
	SourceReconcile     = "reconcile"
)

// TransitionInput moves one subscription to a new local status.
type TransitionInput struct {
	GatewaySubscriptionID string
	Status                enums.SubscriptionStatus
	Source                string
	// OwnerID, when set, must match the subscription's user.
	OwnerID uuid.UUID
	// PaymentID, when set, also queues a payment_verified event.
	PaymentID string
}

// TransitionResult reports the stored row and whether its status changed.
type TransitionResult struct {
	Subscription   *models.Subscription
	PreviousStatus enums.SubscriptionStatus
	Changed        bool
}

// CanTransition reports whether from may move to to. Canceled is terminal and
// nothing moves back to created.
func CanTransition(from, to enums.SubscriptionStatus) bool {
	if from == to || !to.IsValid() {
		return false
	}
	if from == enums.SubscriptionStatusCanceled {
		return false
	}
	return to != enums.SubscriptionStatusCreated
}

// Transition applies input under a row lock and queues the lifecycle event in
// the same transaction. Repeated deliveries of the same status are no-ops.
func (s *Service) Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	gatewayID := strings.TrimSpace(input.GatewaySubscriptionID)
	if gatewayID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	ctx = s.logg.WithSubscriptionID(ctx, gatewayID)

	var result TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByGatewayIDForUpdate(ctx, gatewayID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}
		if input.OwnerID != uuid.Nil && sub.UserID != input.OwnerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}

		result.Subscription = sub
		result.PreviousStatus = sub.Status
		now := s.now().UTC()

		if CanTransition(sub.Status, input.Status) {
			if err := repo.UpdateStatus(ctx, sub.ID, input.Status, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription status")
			}
			sub.Status = input.Status
			sub.UpdatedAt = now
			result.Changed = true

			if eventType, ok := enums.OutboxEventForStatus(input.Status); ok {
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     eventType,
					AggregateType: enums.AggregateSubscription,
					AggregateID:   sub.ID,
					Actor:         actorFor(input),
					Data:          subscriptionPayload(sub, result.PreviousStatus, input.Source, now),
					OccurredAt:    now,
				}); err != nil {
					return err
				}
			}
		}

		if input.PaymentID != "" {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentVerified,
				AggregateType: enums.AggregateSubscription,
				AggregateID:   sub.ID,
				Actor:         actorFor(input),
				Data: payloads.PaymentVerifiedEvent{
					SubscriptionID:        sub.ID,
					GatewaySubscriptionID: sub.GatewaySubscriptionID,
					PaymentID:             input.PaymentID,
					UserID:                sub.UserID,
					VerifiedAt:            now,
				},
				OccurredAt: now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"from":    result.PreviousStatus,
		"to":      input.Status,
		"source":  input.Source,
		"changed": result.Changed,
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "subscription status transition")
	return &result, nil
}

func actorFor(input TransitionInput) *outbox.ActorRef {
	if input.OwnerID != uuid.Nil {
		return &outbox.ActorRef{UserID: input.OwnerID}
	}
	return &outbox.ActorRef{System: input.Source}
}
