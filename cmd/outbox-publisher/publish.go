package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/outbox/registry"
)

const defaultPublishTimeout = 15 * time.Second

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicPublishers caches one publisher per topic.
type topicPublishers struct {
	mu      sync.Mutex
	factory publisherFactory
	byTopic map[string]publisher
}

func newTopicPublishers(factory publisherFactory) *topicPublishers {
	return &topicPublishers{factory: factory, byTopic: make(map[string]publisher)}
}

func (t *topicPublishers) get(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pub, ok := t.byTopic[topic]; ok {
		return pub
	}
	pub := t.factory(topic)
	if pub != nil {
		t.byTopic[topic] = pub
	}
	return pub
}

// message carries the stored envelope bytes untouched. Attributes let
// subscribers filter without decoding the body.
func message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.topics.get(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(ctx, message(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(ctx)
	return err
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
