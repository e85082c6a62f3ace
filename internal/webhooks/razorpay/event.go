package razorpaywebhook

import (
	"encoding/json"
	"strings"

	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
)

// Gateway event names handled by the webhook.
const (
	EventSubscriptionActivated     = "subscription.activated"
	EventSubscriptionCharged       = "subscription.charged"
	EventSubscriptionResumed       = "subscription.resumed"
	EventSubscriptionPending       = "subscription.pending"
	EventSubscriptionHalted        = "subscription.halted"
	EventSubscriptionCancelled     = "subscription.cancelled"
	EventSubscriptionCompleted     = "subscription.completed"
	EventSubscriptionAuthenticated = "subscription.authenticated"
)

var eventStatuses = map[string]enums.SubscriptionStatus{
	EventSubscriptionActivated: enums.SubscriptionStatusActive,
	EventSubscriptionCharged:   enums.SubscriptionStatusActive,
	EventSubscriptionResumed:   enums.SubscriptionStatusActive,
	EventSubscriptionPending:   enums.SubscriptionStatusPastDue,
	EventSubscriptionHalted:    enums.SubscriptionStatusCanceled,
	EventSubscriptionCancelled: enums.SubscriptionStatusCanceled,
	EventSubscriptionCompleted: enums.SubscriptionStatusCanceled,
}

// StatusForEvent maps a gateway event onto the local status it implies.
func StatusForEvent(name string) (enums.SubscriptionStatus, bool) {
	status, ok := eventStatuses[name]
	return status, ok
}

// Event is the subset of the gateway webhook body the service reads.
type Event struct {
	Entity    string   `json:"entity"`
	AccountID string   `json:"account_id"`
	Event     string   `json:"event"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Subscription *entityWrapper[SubscriptionEntity] `json:"subscription"`
		Payment      *entityWrapper[PaymentEntity]      `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

type entityWrapper[T any] struct {
	Entity T `json:"entity"`
}

// SubscriptionEntity is the subscription snapshot attached to an event.
type SubscriptionEntity struct {
	ID     string            `json:"id"`
	PlanID string            `json:"plan_id"`
	Status string            `json:"status"`
	Notes  map[string]string `json:"notes"`
}

// PaymentEntity is the payment attached to charge events.
type PaymentEntity struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook event")
	}
	event.Event = strings.TrimSpace(event.Event)
	if event.Event == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event name missing")
	}
	return &event, nil
}

// SubscriptionID returns the gateway subscription id carried by the event.
func (e *Event) SubscriptionID() string {
	if e == nil || e.Payload.Subscription == nil {
		return ""
	}
	return strings.TrimSpace(e.Payload.Subscription.Entity.ID)
}

// PaymentID returns the payment id for charge events.
func (e *Event) PaymentID() string {
	if e == nil || e.Payload.Payment == nil {
		return ""
	}
	return strings.TrimSpace(e.Payload.Payment.Entity.ID)
}
