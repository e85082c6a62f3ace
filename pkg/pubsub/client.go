package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub billing topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client publishes billing events to Pub/Sub.
type Client struct {
	client       *pubsub.Client
	projectID    string
	billingTopic string
}

// NewClient dials Pub/Sub and fails fast when the billing topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topic := strings.TrimSpace(cfg.BillingTopic)
	if topic == "" {
		return nil, errTopicRequired
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	ps, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: ps, projectID: projectID, billingTopic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", TopicName(projectID, topic)), "pubsub client initialized")
	}
	return c, nil
}

// TopicName expands a short topic id into its resource name. Full resource
// names pass through; anything unusable yields "".
func TopicName(projectID, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + topic
}

// Publisher returns a handle for topic, or nil when the client is unusable.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := TopicName(c.projectID, topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

// Ping confirms the billing topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	name := TopicName(c.projectID, c.billingTopic)
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", name)
	default:
		return fmt.Errorf("checking topic %q: %w", name, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
