package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/enums"
	"github.com/bizvistar/billing-backend/pkg/outbox"
	"github.com/bizvistar/billing-backend/pkg/outbox/payloads"
)

// EventDescriptor binds an event type to its aggregate, topic and payload shape.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row ready for publishing.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry knows every billing event the publisher may emit.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

var billingEvents = []struct {
	eventType enums.OutboxEventType
	payload   func() any
}{
	{enums.EventSubscriptionCreated, newSubscriptionPayload},
	{enums.EventSubscriptionActivated, newSubscriptionPayload},
	{enums.EventSubscriptionPastDue, newSubscriptionPayload},
	{enums.EventSubscriptionCanceled, newSubscriptionPayload},
	{enums.EventPaymentVerified, func() any { return &payloads.PaymentVerifiedEvent{} }},
}

func newSubscriptionPayload() any { return &payloads.SubscriptionEvent{} }

// NewEventRegistry routes every billing event to the configured billing topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.BillingTopic)
	if topic == "" {
		return nil, fmt.Errorf("billing topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(billingEvents))}
	for _, ev := range billingEvents {
		reg.entries[ev.eventType] = EventDescriptor{
			EventType:      ev.eventType,
			AggregateType:  enums.AggregateSubscription,
			Topic:          topic,
			PayloadFactory: ev.payload,
		}
	}
	return reg, nil
}

// Topics lists the distinct topics the registry publishes to.
func (r *EventRegistry) Topics() []string {
	seen := make(map[string]struct{})
	for _, desc := range r.entries {
		seen[desc.Topic] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for topic := range seen {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: a malformed row never becomes valid later.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, permanent("unsupported event type %s", event.EventType)
	}
	if event.AggregateType != desc.AggregateType {
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, permanent("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, permanent("decode envelope: %v", err)
	}
	if envelope.Type != "" && envelope.Type != event.EventType {
		return nil, permanent("envelope type %s does not match row %s", envelope.Type, event.EventType)
	}
	if envelope.AggregateID != uuid.Nil && envelope.AggregateID != event.AggregateID {
		return nil, permanent("envelope aggregate %s does not match row %s", envelope.AggregateID, event.AggregateID)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, permanent("decode %s payload: %v", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}
