package redis

import "strings"

// Every key lives under bv: so a shared instance can be flushed per app.
const keyNamespace = "bv"

// Keyspace is the second key segment.
type Keyspace string

const (
	KeyspaceIdempotency Keyspace = "idempotency"
	KeyspaceRateLimit   Keyspace = "rate_limit"
	KeyspaceWebhook     Keyspace = "webhook"
	KeyspaceLock        Keyspace = "lock"
)

// Key joins non-blank parts under the namespace and keyspace.
func Key(space Keyspace, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(string(space))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return Key(KeyspaceIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return Key(KeyspaceRateLimit, scope)
}

// WebhookEventKey is the dedupe key for one gateway delivery.
func (c *Client) WebhookEventKey(provider, eventID string) string {
	return Key(KeyspaceWebhook, provider, eventID)
}

func (c *Client) LockKey(name string) string {
	return Key(KeyspaceLock, name)
}
