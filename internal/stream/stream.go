package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// Message is one delivery on a topic. Key determines the partition; all
// messages with the same key are delivered in order relative to each other.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    uint64
}

// Header names threaded through an order's lifecycle.
const (
	HeaderCorrelationID = "cid"
	HeaderAttempt       = "attempt"
	HeaderOriginTopic   = "origin-topic"
	HeaderEventTime     = "event-time"
)

// Publisher sends messages onto a topic.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Handler processes one delivery. A nil return acknowledges the delivery
// (the consumption position advances); an error triggers redelivery.
type Handler func(ctx context.Context, msg *Message) error

// Consumer subscribes a handler to a topic under a named group. Groups
// consume independently: every group sees every message.
type Consumer interface {
	Subscribe(ctx context.Context, topic, group string, h Handler) error
}

// EncodeOrder serializes an order payload for the stream.
func EncodeOrder(o domain.Order) ([]byte, error) {
	data, err := msgpack.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}
	return data, nil
}

// DecodeOrder deserializes an order payload from the stream.
func DecodeOrder(value []byte) (domain.Order, error) {
	var o domain.Order
	if err := msgpack.Unmarshal(value, &o); err != nil {
		return domain.Order{}, fmt.Errorf("failed to decode order: %w", err)
	}
	return o, nil
}

// EventTime reads the event-time header, falling back to now when absent or
// malformed.
func (m *Message) EventTime() time.Time {
	if m.Headers != nil {
		if raw, ok := m.Headers[HeaderEventTime]; ok {
			if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				return ts
			}
		}
	}
	return time.Now()
}

// Attempt reads the attempt header; 1 (the original delivery) when absent.
func (m *Message) Attempt() int {
	if m.Headers != nil {
		if raw, ok := m.Headers[HeaderAttempt]; ok {
			var n int
			if _, err := fmt.Sscanf(raw, "%d", &n); err == nil && n >= 1 {
				return n
			}
		}
	}
	return 1
}

// OriginTopic reads the origin-topic header, falling back to the message's
// own topic.
func (m *Message) OriginTopic() string {
	if m.Headers != nil {
		if t, ok := m.Headers[HeaderOriginTopic]; ok && t != "" {
			return t
		}
	}
	return m.Topic
}
