package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/pkg/enums"
)

const envelopeVersion = 1

// ActorRef says who caused an event: a subscriber, or a system source such
// as the webhook handler or the reconcile job.
type ActorRef struct {
	UserID uuid.UUID `json:"userId,omitempty"`
	System string    `json:"system,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// as the Pub/Sub message body. Type and AggregateID repeat the row columns so
// subscribers never need message attributes to route.
type PayloadEnvelope struct {
	Version     int                   `json:"version"`
	EventID     string                `json:"eventId"`
	Type        enums.OutboxEventType `json:"type,omitempty"`
	AggregateID uuid.UUID             `json:"aggregateId,omitempty"`
	OccurredAt  time.Time             `json:"occurredAt"`
	Actor       *ActorRef             `json:"actor,omitempty"`
	Data        json.RawMessage       `json:"data"`
}

// DomainEvent is a lifecycle fact queued inside the transaction that
// produced it.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("unknown outbox aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return errors.New("aggregate id required")
	case e.Data == nil:
		return errors.New("event data required")
	}
	return nil
}

// envelope stamps e with a fresh event id. now is used only when the caller
// left OccurredAt empty.
func (e DomainEvent) envelope(now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal %s data: %w", e.EventType, err)
	}
	at := e.OccurredAt
	if at.IsZero() {
		at = now
	}
	return PayloadEnvelope{
		Version:     envelopeVersion,
		EventID:     uuid.NewString(),
		Type:        e.EventType,
		AggregateID: e.AggregateID,
		OccurredAt:  at.UTC(),
		Actor:       e.Actor,
		Data:        data,
	}, nil
}
