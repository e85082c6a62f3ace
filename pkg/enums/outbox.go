package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateSubscription OutboxAggregateType = "subscription"
)

var aggregateTypes = []OutboxAggregateType{AggregateSubscription}

func (a OutboxAggregateType) IsValid() bool { return known(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, aggregateTypes)
}

// OutboxEventType maps to the event_type enum in Postgres. Adding a value
// needs a migration that extends event_type_enum.
type OutboxEventType string

const (
	EventSubscriptionCreated   OutboxEventType = "subscription_created"
	EventSubscriptionActivated OutboxEventType = "subscription_activated"
	EventSubscriptionPastDue   OutboxEventType = "subscription_past_due"
	EventSubscriptionCanceled  OutboxEventType = "subscription_canceled"
	EventPaymentVerified       OutboxEventType = "payment_verified"
)

var outboxEventTypes = []OutboxEventType{
	EventSubscriptionCreated,
	EventSubscriptionActivated,
	EventSubscriptionPastDue,
	EventSubscriptionCanceled,
	EventPaymentVerified,
}

func (e OutboxEventType) IsValid() bool { return known(e, outboxEventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, outboxEventTypes)
}

// statusEvents maps the status a subscription enters to the event announcing it.
var statusEvents = map[SubscriptionStatus]OutboxEventType{
	SubscriptionStatusActive:   EventSubscriptionActivated,
	SubscriptionStatusPastDue:  EventSubscriptionPastDue,
	SubscriptionStatusCanceled: EventSubscriptionCanceled,
}

// OutboxEventForStatus returns the lifecycle event for entering status.
// Created has none: creation emits EventSubscriptionCreated explicitly.
func OutboxEventForStatus(status SubscriptionStatus) (OutboxEventType, bool) {
	ev, ok := statusEvents[status]
	return ev, ok
}
