// Package publisher emits order events to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic = "storefront-orders"

	EventOrderCompleted = "order.completed"
)

// OrderCompleted is published once the payment widget confirms a payment.
type OrderCompleted struct {
	OrderID     string            `json:"order_id"`
	SessionID   string            `json:"session_id"`
	ProjectUUID string            `json:"project_uuid"`
	Items       []domain.LineItem `json:"items"`
	Subtotal    int64             `json:"subtotal"`
	Shipping    int64             `json:"shipping"`
	Total       int64             `json:"total"`
	Currency    string            `json:"currency"`
	Country     string            `json:"country"`
	Email       string            `json:"email"`
	CompletedAt time.Time         `json:"completed_at"`
}

type Publisher interface {
	PublishOrderCompleted(ctx context.Context, event OrderCompleted) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(topic string, logger *zap.Logger, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

// PublishOrderCompleted writes the event keyed by session id so events of one session stay ordered.
func (p *KafkaPublisher) PublishOrderCompleted(ctx context.Context, event OrderCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write order event: %w", err)
	}
	p.logger.Info("order event published", zap.String("order_id", event.OrderID), zap.String("session_id", event.SessionID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCompleted(context.Context, OrderCompleted) error { return nil }
func (NopPublisher) Close() error                                              { return nil }
