// Package idempotency remembers which delivered events a consumer has already
// handled. Gateway webhooks are delivered at least once, so every handler
// checks here before acting.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bizvistar/billing-backend/pkg/redis"
)

// maxEventIDLen bounds ids taken from request headers.
const maxEventIDLen = 200

var (
	ErrConsumerRequired = errors.New("consumer name is required")
	ErrInvalidEventID   = errors.New("event id must be 1-200 non-space characters")
)

// Manager marks event ids processed per consumer. Markers expire after ttl,
// which must cover the sender's retry horizon.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("marker ttl must be positive")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed reports true when eventID was seen before. Otherwise
// it records the event with the time it was first handled.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	fresh, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, fmt.Errorf("mark %s processed: %w", eventID, err)
	}
	return !fresh, nil
}

// Delete forgets eventID so the sender's next retry is handled again.
func (m *Manager) Delete(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer, eventID string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return "", ErrConsumerRequired
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" || len(eventID) > maxEventIDLen || strings.ContainsAny(eventID, " \t\r\n") {
		return "", ErrInvalidEventID
	}
	return m.store.IdempotencyKey("processed:"+consumer, eventID), nil
}
