// Package events publishes refund lifecycle events to the configured bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace-service/models"
	awspkg "marketplace-service/pkg/aws"
)

type Publisher interface {
	Publish(ctx context.Context, event models.RefundEvent) error
}

// SNSPublisher sends each event to one topic with the event type as a
// message attribute.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicARN string
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) Publish(ctx context.Context, event models.RefundEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal refund event: %w", err)
	}
	return p.client.Publish(ctx, p.topicARN, event.EventType, msgBytes)
}

// amqpProducer is satisfied by *rabbitmq.EventProducer.
type amqpProducer interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// RabbitMQPublisher routes each event on a topic exchange by its type.
type RabbitMQPublisher struct {
	producer amqpProducer
	exchange string
}

func NewRabbitMQPublisher(producer amqpProducer, exchange string) *RabbitMQPublisher {
	if exchange == "" {
		exchange = "refunds"
	}
	return &RabbitMQPublisher{producer: producer, exchange: exchange}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event models.RefundEvent) error {
	if err := p.producer.Publish(ctx, p.exchange, event.EventType, event); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", event.EventType, err)
	}
	return nil
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.RefundEvent) error { return nil }
