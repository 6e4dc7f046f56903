package aggregation

import (
	"sort"
	"sync"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/metrics"
)

// WindowedTable maintains per-product statistics in fixed-size,
// non-overlapping (tumbling) time windows. There is no grace period: an
// event whose window has already closed is dropped and counted, never merged
// into a newer window. Closed windows stay queryable until retention
// elapses, then the evictor removes them.
type WindowedTable struct {
	windowSize time.Duration
	retention  time.Duration

	mu      sync.RWMutex
	windows map[windowKey]*windowEntry
}

type windowKey struct {
	product string
	start   int64 // unix nano of window start
}

type windowEntry struct {
	mu    sync.Mutex
	stats domain.WindowedStatistics
}

// NewWindowedTable creates a windowed table. Retention must exceed the
// window size; config validation enforces it upstream.
func NewWindowedTable(windowSize, retention time.Duration) *WindowedTable {
	return &WindowedTable{
		windowSize: windowSize,
		retention:  retention,
		windows:    make(map[windowKey]*windowEntry),
	}
}

// WindowStart truncates an event time to its tumbling window boundary.
func (t *WindowedTable) WindowStart(eventTime time.Time) time.Time {
	return eventTime.Truncate(t.windowSize)
}

// Update folds one order into its event-time window. Returns false when the
// event is late (its window already closed) and was dropped.
func (t *WindowedTable) Update(product string, price float32, eventTime, now time.Time) bool {
	start := t.WindowStart(eventTime)
	end := start.Add(t.windowSize)

	if !now.Before(end) {
		metrics.LateEventsDropped.Inc()
		return false
	}

	e := t.entry(product, start, end)
	e.mu.Lock()
	e.stats.Update(price, now)
	e.mu.Unlock()
	metrics.AggregationUpdates.WithLabelValues("windowed").Inc()
	return true
}

func (t *WindowedTable) entry(product string, start, end time.Time) *windowEntry {
	key := windowKey{product: product, start: start.UnixNano()}

	t.mu.RLock()
	e, ok := t.windows[key]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.windows[key]; ok {
		return e
	}
	e = &windowEntry{
		stats: domain.WindowedStatistics{
			ProductStatistics: domain.ProductStatistics{Product: product},
			WindowStart:       start,
			WindowEnd:         end,
		},
	}
	t.windows[key] = e
	return e
}

// Get returns the statistics for one (product, window start) pair.
func (t *WindowedTable) Get(product string, windowStart time.Time) (domain.WindowedStatistics, bool) {
	key := windowKey{product: product, start: t.WindowStart(windowStart).UnixNano()}

	t.mu.RLock()
	e, ok := t.windows[key]
	t.mu.RUnlock()
	if !ok {
		return domain.WindowedStatistics{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats, true
}

// Windows returns all retained windows for a product, oldest first.
func (t *WindowedTable) Windows(product string) []domain.WindowedStatistics {
	t.mu.RLock()
	entries := make([]*windowEntry, 0)
	for key, e := range t.windows {
		if key.product == product {
			entries = append(entries, e)
		}
	}
	t.mu.RUnlock()

	out := make([]domain.WindowedStatistics, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.stats)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WindowStart.Before(out[j].WindowStart)
	})
	return out
}

// Evict removes windows whose retention has elapsed past their close.
// Returns the number removed.
func (t *WindowedTable) Evict(now time.Time) int {
	cutoff := now.Add(-t.retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for key, e := range t.windows {
		if e.stats.WindowEnd.Before(cutoff) {
			delete(t.windows, key)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.WindowsEvicted.Add(float64(evicted))
	}
	return evicted
}

// Len returns the number of retained windows.
func (t *WindowedTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.windows)
}
