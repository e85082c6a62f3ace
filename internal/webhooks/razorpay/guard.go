package razorpaywebhook

import (
	"context"
	"errors"
)

// consumerName scopes processed-event markers for this webhook.
const consumerName = "razorpay-webhook"

type processedTracker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// Guard drops redelivered gateway events.
type Guard struct {
	tracker processedTracker
}

func NewGuard(tracker processedTracker) (*Guard, error) {
	if tracker == nil {
		return nil, errors.New("idempotency tracker is required")
	}
	return &Guard{tracker: tracker}, nil
}

// CheckAndMark reports whether eventID was already processed and marks it otherwise.
func (g *Guard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return g.tracker.CheckAndMarkProcessed(ctx, consumerName, eventID)
}

// Delete releases the marker after a failed delivery so the retry is processed.
func (g *Guard) Delete(ctx context.Context, eventID string) error {
	return g.tracker.Delete(ctx, consumerName, eventID)
}
