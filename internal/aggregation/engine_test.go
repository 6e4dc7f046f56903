package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/stream"
)

func orderMessage(t *testing.T, o domain.Order, eventTime time.Time) *stream.Message {
	t.Helper()
	value, err := stream.EncodeOrder(o)
	require.NoError(t, err)
	return &stream.Message{
		Topic: "orders",
		Key:   o.OrderID,
		Value: value,
		Headers: map[string]string{
			stream.HeaderEventTime: eventTime.Format(time.RFC3339Nano),
		},
	}
}

func TestEngine_HandleUpdatesBothTables(t *testing.T) {
	e := NewEngine(10*time.Second, 5*time.Minute)
	now := time.Now()

	msg := orderMessage(t, domain.Order{OrderID: "order-1", Product: "widget", Price: 25}, now)
	require.NoError(t, e.Handle(context.Background(), msg))

	running, ok := e.Running().Get("widget")
	require.True(t, ok)
	require.Equal(t, uint64(1), running.OrderCount)

	windows := e.Windowed().Windows("widget")
	require.Len(t, windows, 1)
	require.Equal(t, uint64(1), windows[0].OrderCount)
}

func TestEngine_HandleAcksUndecodablePayload(t *testing.T) {
	e := NewEngine(10*time.Second, 5*time.Minute)

	msg := &stream.Message{Topic: "orders", Key: "x", Value: []byte{0xc1}}
	require.NoError(t, e.Handle(context.Background(), msg),
		"undecodable events must be acknowledged, not redelivered forever")
	require.Empty(t, e.Running().All())
}

func TestEngine_AggregatesFailingOrdersToo(t *testing.T) {
	// The engine consumes its own group; whether the processing pipeline
	// later rejects the order is invisible here.
	e := NewEngine(10*time.Second, 5*time.Minute)
	now := time.Now()

	msg := orderMessage(t, domain.Order{OrderID: "order-88", Product: "widget", Price: 25}, now)
	require.NoError(t, e.Handle(context.Background(), msg))

	running, ok := e.Running().Get("widget")
	require.True(t, ok)
	require.Equal(t, uint64(1), running.OrderCount)
}

func TestEngine_LastActivity(t *testing.T) {
	e := NewEngine(10*time.Second, 5*time.Minute)
	require.True(t, e.LastActivity().IsZero())

	msg := orderMessage(t, domain.Order{OrderID: "order-1", Product: "widget", Price: 25}, time.Now())
	require.NoError(t, e.Handle(context.Background(), msg))
	require.False(t, e.LastActivity().IsZero())
}
