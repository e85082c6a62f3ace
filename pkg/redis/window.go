package redis

import (
	"context"
	"time"
)

// IncrWithTTL increments key and starts its expiry on the first hit. If an
// earlier expire was lost the key would never reset, so a counter found
// without a TTL gets one.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, errNotInitialized
	}
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return count, nil
	}
	if count == 1 {
		return count, c.store.Expire(ctx, key, ttl).Err()
	}
	remaining, err := c.store.TTL(ctx, key).Result()
	if err == nil && remaining < 0 {
		err = c.store.Expire(ctx, key, ttl).Err()
	}
	return count, err
}

// FixedWindowAllow counts a hit against scope and reports whether it is
// within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.IncrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}
