package memory

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/vietddude/orderflow/internal/stream"
)

// DelayQueue implements stream.DelayQueue with an in-process min-heap.
// Used when no redis is configured.
type DelayQueue struct {
	mu sync.Mutex
	h  deferredHeap
}

func NewDelayQueue() *DelayQueue {
	return &DelayQueue{}
}

// Enqueue parks a deferred message.
func (q *DelayQueue) Enqueue(ctx context.Context, d stream.Deferred) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, d)
	return nil
}

// PopDue removes and returns up to limit messages due at or before now.
func (q *DelayQueue) PopDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]stream.Deferred, error) {
	if limit <= 0 {
		limit = 100
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var due []stream.Deferred
	for len(q.h) > 0 && len(due) < limit {
		if q.h[0].Due.After(now) {
			break
		}
		due = append(due, heap.Pop(&q.h).(stream.Deferred))
	}
	return due, nil
}

type deferredHeap []stream.Deferred

func (h deferredHeap) Len() int           { return len(h) }
func (h deferredHeap) Less(i, j int) bool { return h[i].Due.Before(h[j].Due) }
func (h deferredHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *deferredHeap) Push(x any)        { *h = append(*h, x.(stream.Deferred)) }
func (h *deferredHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	*h = old[:n-1]
	return d
}
