package aggregation

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vietddude/orderflow/internal/stream"
)

// Engine consumes the order stream independently of the processing pipeline
// and maintains the running and windowed tables. It aggregates every order
// event as delivered, successful or not; the tables reflect the stream, not
// the store.
type Engine struct {
	running  *RunningTable
	windowed *WindowedTable
	lastSeen atomic.Int64
	now      func() time.Time
}

// NewEngine creates an aggregation engine over fresh tables.
func NewEngine(windowSize, retention time.Duration) *Engine {
	return &Engine{
		running:  NewRunningTable(),
		windowed: NewWindowedTable(windowSize, retention),
		now:      time.Now,
	}
}

// Handle is the stream handler for the aggregation consumer group. Updates
// are applied once per delivery; both table updates are in-memory and cannot
// partially fail, so the delivery is always acknowledged.
func (e *Engine) Handle(ctx context.Context, msg *stream.Message) error {
	e.lastSeen.Store(e.now().UnixNano())

	order, err := stream.DecodeOrder(msg.Value)
	if err != nil {
		// Undecodable events are the pipeline's problem; nothing to aggregate.
		slog.Debug("Skipping undecodable event in aggregation", "error", err)
		return nil
	}

	now := e.now()
	e.running.Update(order.Product, order.Price, now)
	e.windowed.Update(order.Product, order.Price, msg.EventTime(), now)
	return nil
}

// Running exposes the running table for the query surface.
func (e *Engine) Running() *RunningTable {
	return e.running
}

// Windowed exposes the windowed table for the query surface.
func (e *Engine) Windowed() *WindowedTable {
	return e.windowed
}

// LastActivity returns when the engine last saw a delivery.
func (e *Engine) LastActivity() time.Time {
	ns := e.lastSeen.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// RunEvictor removes expired windows on a fixed cadence until the context is
// cancelled.
func (e *Engine) RunEvictor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.windowed.Evict(e.now()); n > 0 {
				slog.Debug("Evicted expired windows", "count", n)
			}
		}
	}
}
