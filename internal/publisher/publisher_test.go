package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockWriter struct {
	m      sync.RWMutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.m.Lock()
	defer w.m.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.m.Lock()
	defer w.m.Unlock()
	w.closed = true
	return nil
}

func TestPublishOrderCompleted(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	event := OrderCompleted{
		OrderID:   "ORD-ABC",
		SessionID: "sess-1",
		Items:     []domain.LineItem{{ProductID: "p1", Quantity: 2, UnitPrice: 5000}},
		Subtotal:  10000,
		Shipping:  1000,
		Total:     11000,
		Currency:  "mxn",
	}
	require.NoError(t, p.PublishOrderCompleted(context.Background(), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "sess-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, EventOrderCompleted, string(msg.Headers[0].Value))

	var got OrderCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, int64(11000), got.Total)
	assert.Equal(t, "p1", got.Items[0].ProductID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishOrderCompleted_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	err := p.PublishOrderCompleted(context.Background(), OrderCompleted{SessionID: "s"})
	assert.ErrorContains(t, err, "broker down")
}

func TestNewKafkaPublisher_DefaultTopic(t *testing.T) {
	p := NewKafkaPublisher("", zap.NewNop(), "localhost:9092")
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, w.Topic)
	require.NoError(t, p.Close())
}
