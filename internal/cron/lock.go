package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock keeps two cron workers from running the same cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a single-key lease. The TTL bounds how long a crashed worker
// can block the others, so it should sit just under the cycle interval.
type RedisLock struct {
	store  lockStore
	key    string
	ttl    time.Duration
	holder string
	token  string
}

// NewRedisLock builds a lease on key. holder names the worker instance and
// ends up in the stored token for debugging stuck locks.
func NewRedisLock(store lockStore, key, holder string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("lock store required")
	case key == "":
		return nil, errors.New("lock key required")
	case ttl <= 0:
		return nil, errors.New("lock ttl must be positive")
	}
	if holder == "" {
		holder = "cron"
	}
	return &RedisLock{store: store, key: key, ttl: ttl, holder: holder}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.holder + "/" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release drops the lease if this worker still holds it. A lease that expired
// and was taken over by another worker is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""

	current, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read %s: %w", l.key, err)
	case current != token:
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
