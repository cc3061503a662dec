// Package event publishes payment gateway domain events.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zoobzio/clockz"

	"github.com/c50bossio/6fb-booking-sub001/internal/domain"
	pkgkafka "github.com/c50bossio/6fb-booking-sub001/pkg/kafka"
	"github.com/c50bossio/6fb-booking-sub001/pkg/logger"
)

// Topics.
var (
	TopicIntentCreated   = pkgkafka.Topic("gateway", "intent_created")
	TopicFailover        = pkgkafka.Topic("gateway", "failover")
	TopicWebhookReceived = pkgkafka.Topic("gateway", "webhook_received")
	TopicHealthChanged   = pkgkafka.Topic("gateway", "health_changed")
)

// Aggregate types and source.
const (
	AggregatePaymentIntent = "payment_intent"
	AggregateWebhook       = "webhook"
	AggregateGateway       = "gateway"
	SourcePaygate          = "paygate"
)

// IntentCreatedData is the payload of an intent_created event.
type IntentCreatedData struct {
	IntentID   string             `json:"intent_id"`
	Reference  string             `json:"reference"`
	Gateway    domain.GatewayType `json:"gateway"`
	Strategy   string             `json:"strategy"`
	Amount     string             `json:"amount"`
	Currency   string             `json:"currency"`
	CustomerID string             `json:"customer_id,omitempty"`
	FailedOver bool               `json:"failed_over"`
}

// FailoverData is the payload of a failover event.
type FailoverData struct {
	FailedGateway domain.GatewayType `json:"failed_gateway"`
	NextGateway   domain.GatewayType `json:"next_gateway,omitempty"`
	ErrorCode     string             `json:"error_code"`
	Attempt       int                `json:"attempt"`
	Amount        string             `json:"amount"`
	Currency      string             `json:"currency"`
}

// WebhookReceivedData is the payload of a webhook_received event.
type WebhookReceivedData struct {
	EventID  string             `json:"event_id"`
	Gateway  domain.GatewayType `json:"gateway"`
	Type     string             `json:"type"`
	ObjectID string             `json:"object_id,omitempty"`
}

// HealthChangedData is the payload of a health_changed event.
type HealthChangedData struct {
	Gateway        domain.GatewayType `json:"gateway"`
	Healthy        bool               `json:"healthy"`
	ResponseTimeMs int64              `json:"response_time_ms"`
	Error          string             `json:"error,omitempty"`
}

// Publisher sends an envelope to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes gateway domain events.
type Producer struct {
	pub    Publisher
	clock  clockz.Clock
	logger *slog.Logger
}

// NewProducer creates a producer over pub.
func NewProducer(pub Publisher, clock clockz.Clock, logger *slog.Logger) *Producer {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Producer{pub: pub, clock: clock, logger: logger}
}

// PublishIntentCreated publishes an intent_created event.
func (p *Producer) PublishIntentCreated(ctx context.Context, d IntentCreatedData) error {
	return p.publish(ctx, TopicIntentCreated, "intent_created", d.Reference, AggregatePaymentIntent, d)
}

// PublishFailover publishes a failover event.
func (p *Producer) PublishFailover(ctx context.Context, d FailoverData) error {
	return p.publish(ctx, TopicFailover, "failover", d.FailedGateway.String(), AggregateGateway, d)
}

// PublishWebhookReceived publishes a webhook_received event.
func (p *Producer) PublishWebhookReceived(ctx context.Context, d WebhookReceivedData) error {
	return p.publish(ctx, TopicWebhookReceived, "webhook_received",
		domain.FormatReference(d.Gateway, d.EventID), AggregateWebhook, d)
}

// PublishHealthChanged publishes a health_changed event.
func (p *Producer) PublishHealthChanged(ctx context.Context, d HealthChangedData) error {
	return p.publish(ctx, TopicHealthChanged, "health_changed", d.Gateway.String(), AggregateGateway, d)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	e, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, SourcePaygate, data, p.clock.Now())
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		e.WithCorrelationID(id)
	}
	if err := p.pub.Publish(ctx, topic, e); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	p.logger.DebugContext(ctx, "published gateway event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishIntentCreated(context.Context, IntentCreatedData) error     { return nil }
func (Nop) PublishFailover(context.Context, FailoverData) error               { return nil }
func (Nop) PublishWebhookReceived(context.Context, WebhookReceivedData) error { return nil }
func (Nop) PublishHealthChanged(context.Context, HealthChangedData) error     { return nil }
