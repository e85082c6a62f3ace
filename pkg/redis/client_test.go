package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "coupon:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected first call allowed with count 1, got allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].ttl != time.Minute {
		t.Fatalf("expected expire for first increment, got %+v", mock.expireCalls)
	}

	allowed, count, err = client.FixedWindowAllow(ctx, "coupon:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 2 {
		t.Fatalf("unexpected second call state allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should not be set again")
	}

	allowed, _, err = client.FixedWindowAllow(ctx, "coupon:user-1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestIncrWithTTLRepairsMissingExpiry(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.RateLimitKey("coupon:user-2")

	// counter left behind without a TTL
	mock.incr[key] = 4
	count, err := client.IncrWithTTL(ctx, key, time.Minute)
	if err != nil || count != 5 {
		t.Fatalf("unexpected incr result count=%d err=%v", count, err)
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].key != key {
		t.Fatalf("expected expiry to be restored, got %+v", mock.expireCalls)
	}

	if _, err := client.IncrWithTTL(ctx, key, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("a counter with a TTL must not be re-expired")
	}
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.WebhookEventKey("razorpay", "evt_1")

	ok, err := client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || ok {
		t.Fatalf("expected second SetNX to lose, ok=%v err=%v", ok, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil raw client should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("subscriptions", "abc"); got != "bv:idempotency:subscriptions:abc" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("coupon"); got != "bv:rate_limit:coupon" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.WebhookEventKey("razorpay", " evt_1 "); got != "bv:webhook:razorpay:evt_1" {
		t.Fatalf("unexpected webhook key %s", got)
	}
	if got := client.LockKey(""); got != "bv:lock" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
	if got := Key(KeyspaceLock, "cron-worker", " prod "); got != "bv:lock:cron-worker:prod" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, DialTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.PoolSize != 7 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("unexpected options db=%d pool=%d dial=%s", opts.DB, opts.PoolSize, opts.DialTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 2 {
		t.Fatalf("address config not applied: %+v", opts)
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	ttl         map[string]time.Duration
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
		ttl:  make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	m.ttl[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) TTL(ctx context.Context, key string) *redis.DurationCmd {
	if ttl, ok := m.ttl[key]; ok {
		return redis.NewDurationResult(ttl, nil)
	}
	return redis.NewDurationResult(-1, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
