package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/orderflow/internal/stream"
)

// Broker is an in-process partitioned message log. It preserves order within
// a partition, delivers every message to every subscribed group, and
// redelivers a message until its handler acknowledges it (at-least-once).
//
// It stands in for the external log substrate; partition assignment and
// rebalancing of a real broker are out of scope.
type Broker struct {
	partitions int
	buffer     int

	mu     sync.RWMutex
	topics map[string]*topic
}

type topic struct {
	offsets []uint64
	groups  map[string]*group
}

type group struct {
	chans []chan *stream.Message
}

// NewBroker creates a broker with the given partition count per topic.
func NewBroker(partitions int) *Broker {
	if partitions < 1 {
		partitions = 1
	}
	return &Broker{
		partitions: partitions,
		buffer:     256,
		topics:     make(map[string]*topic),
	}
}

func (b *Broker) getTopic(name string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		t = &topic{
			offsets: make([]uint64, b.partitions),
			groups:  make(map[string]*group),
		}
		b.topics[name] = t
	}
	return t
}

func (b *Broker) partitionFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()) % b.partitions
}

// Publish appends a message to its key's partition and fans it out to every
// subscribed group. Blocks when a group's partition buffer is full.
func (b *Broker) Publish(ctx context.Context, msg stream.Message) error {
	if msg.Topic == "" {
		return fmt.Errorf("message topic must not be empty")
	}

	t := b.getTopic(msg.Topic)
	p := b.partitionFor(msg.Key)

	b.mu.Lock()
	msg.Partition = p
	msg.Offset = t.offsets[p]
	t.offsets[p]++
	groups := make([]*group, 0, len(t.groups))
	for _, g := range t.groups {
		groups = append(groups, g)
	}
	b.mu.Unlock()

	for _, g := range groups {
		copied := msg
		select {
		case <-ctx.Done():
			return ctx.Err()
		case g.chans[p] <- &copied:
		}
	}
	return nil
}

// Subscribe registers a group on a topic and starts one delivery goroutine
// per partition. Delivery within a partition is strictly sequential; a
// handler error is retried with a short backoff until it acknowledges or the
// context is cancelled.
func (b *Broker) Subscribe(ctx context.Context, topicName, groupName string, h stream.Handler) error {
	t := b.getTopic(topicName)

	b.mu.Lock()
	if _, exists := t.groups[groupName]; exists {
		b.mu.Unlock()
		return fmt.Errorf("group %s already subscribed to %s", groupName, topicName)
	}
	g := &group{chans: make([]chan *stream.Message, b.partitions)}
	for i := range g.chans {
		g.chans[i] = make(chan *stream.Message, b.buffer)
	}
	t.groups[groupName] = g
	b.mu.Unlock()

	for i := 0; i < b.partitions; i++ {
		go b.deliver(ctx, g.chans[i], topicName, groupName, h)
	}
	return nil
}

func (b *Broker) deliver(
	ctx context.Context,
	ch <-chan *stream.Message,
	topicName, groupName string,
	h stream.Handler,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			b.handleWithRedelivery(ctx, msg, topicName, groupName, h)
		}
	}
}

func (b *Broker) handleWithRedelivery(
	ctx context.Context,
	msg *stream.Message,
	topicName, groupName string,
	h stream.Handler,
) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 2 * time.Second

	for {
		err := h(ctx, msg)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		slog.Warn("Handler failed, redelivering",
			"topic", topicName,
			"group", groupName,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
