package stream

import (
	"context"
	"time"
)

// Deferred is a message scheduled for re-delivery at a later time. Retry
// lanes park messages here instead of blocking a partition's worker.
type Deferred struct {
	Msg Message   `json:"msg"`
	Due time.Time `json:"due"`
}

// DelayQueue holds deferred messages until they come due.
type DelayQueue interface {
	// Enqueue parks a deferred message.
	Enqueue(ctx context.Context, d Deferred) error

	// PopDue removes and returns up to limit messages due at or before now,
	// earliest first.
	PopDue(ctx context.Context, now time.Time, limit int) ([]Deferred, error)
}
