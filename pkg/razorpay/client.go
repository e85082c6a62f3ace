package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/bizvistar/billing-backend/pkg/config"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
	errLoggerRequired    = errors.New("razorpay logger is required")
	errInvalidMode       = errors.New("razorpay mode must be \"test\" or \"live\"")
)

// subscriptionAPI is the subset of the SDK subscription resource the client drives.
type subscriptionAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(subscriptionID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client wraps the Razorpay SDK with mode-aware credentials, logging and error mapping.
type Client struct {
	subscriptions subscriptionAPI
	mode          string
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient picks the credential pair for the configured mode and builds the SDK client.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	mode := cfg.Environment()
	if mode != "test" && mode != "live" {
		return nil, errInvalidMode
	}

	keyID, keySecret := cfg.Credentials()
	keyID = strings.TrimSpace(keyID)
	keySecret = strings.TrimSpace(keySecret)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	sdk := rzp.NewClient(keyID, keySecret)
	c := &Client{
		subscriptions: sdk.Subscription,
		mode:          mode,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}

	logg.Info(logg.WithGatewayMode(ctx, mode), "razorpay client initialized")
	return c, nil
}

// Mode reports the active gateway mode.
func (c *Client) Mode() string {
	if c == nil {
		return ""
	}
	return c.mode
}

// KeyID is the publishable key handed to the browser checkout.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// KeySecret signs payment callbacks.
func (c *Client) KeySecret() string {
	if c == nil {
		return ""
	}
	return c.keySecret
}

// WebhookSecret signs webhook deliveries.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// SubscriptionCreateParams is the gateway subscription request body.
type SubscriptionCreateParams struct {
	PlanID         string
	TotalCount     int
	CustomerNotify bool
	OfferID        string
	StartAt        *time.Time
	Notes          map[string]string
}

func (p SubscriptionCreateParams) payload() map[string]interface{} {
	notify := 0
	if p.CustomerNotify {
		notify = 1
	}
	body := map[string]interface{}{
		"plan_id":         p.PlanID,
		"total_count":     p.TotalCount,
		"customer_notify": notify,
	}
	if p.OfferID != "" {
		body["offer_id"] = p.OfferID
	}
	if p.StartAt != nil {
		body["start_at"] = p.StartAt.Unix()
	}
	if len(p.Notes) > 0 {
		notes := make(map[string]interface{}, len(p.Notes))
		for k, v := range p.Notes {
			notes[k] = v
		}
		body["notes"] = notes
	}
	return body
}

// Subscription is the slice of the gateway subscription entity the backend reads.
type Subscription struct {
	ID         string
	PlanID     string
	Status     string
	OfferID    string
	TotalCount int
	PaidCount  int
	ShortURL   string
	Notes      map[string]string
}

func (c *Client) CreateSubscription(ctx context.Context, params SubscriptionCreateParams) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.log(ctx, "request", "create_subscription", map[string]any{
		"plan_id":     params.PlanID,
		"total_count": params.TotalCount,
		"offer_id":    params.OfferID,
	})

	resp, err := c.subscriptions.Create(params.payload(), nil)
	if err != nil {
		c.log(ctx, "error", "create_subscription", map[string]any{"error": err.Error()})
		return nil, mapGatewayError(err, "create subscription")
	}

	sub := subscriptionFromMap(resp)
	if sub.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay create subscription returned no id")
	}
	c.log(ctx, "response", "create_subscription", map[string]any{
		"subscription_id": sub.ID,
		"status":          sub.Status,
	})
	return sub, nil
}

func (c *Client) FetchSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.log(ctx, "request", "fetch_subscription", map[string]any{"subscription_id": subscriptionID})

	resp, err := c.subscriptions.Fetch(subscriptionID, nil, nil)
	if err != nil {
		c.log(ctx, "error", "fetch_subscription", map[string]any{"error": err.Error()})
		return nil, mapGatewayError(err, "fetch subscription")
	}

	sub := subscriptionFromMap(resp)
	c.log(ctx, "response", "fetch_subscription", map[string]any{
		"subscription_id": sub.ID,
		"status":          sub.Status,
	})
	return sub, nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation":    op,
		"phase":        phase,
		"gateway_mode": c.mode,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "signature", "card", "email", "contact", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

// mapGatewayError hides gateway failure details behind a dependency error;
// the cause stays on the chain for logging.
func mapGatewayError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("razorpay %s timed out", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("razorpay %s failed", op))
}

func subscriptionFromMap(raw map[string]interface{}) *Subscription {
	sub := &Subscription{
		ID:         stringField(raw, "id"),
		PlanID:     stringField(raw, "plan_id"),
		Status:     stringField(raw, "status"),
		OfferID:    stringField(raw, "offer_id"),
		TotalCount: intField(raw, "total_count"),
		PaidCount:  intField(raw, "paid_count"),
		ShortURL:   stringField(raw, "short_url"),
	}
	if notes, ok := raw["notes"].(map[string]interface{}); ok {
		sub.Notes = make(map[string]string, len(notes))
		for k, v := range notes {
			sub.Notes[k] = fmt.Sprint(v)
		}
	}
	return sub
}

func stringField(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func intField(raw map[string]interface{}, key string) int {
	switch v := raw[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
