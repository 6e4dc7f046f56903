package aggregation

import (
	"sync"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/metrics"
)

// RunningTable holds the per-product running statistics. Entries carry their
// own lock so concurrent updates to unrelated products never serialize; the
// table-level lock only guards the map itself.
type RunningTable struct {
	mu      sync.RWMutex
	entries map[string]*runningEntry
}

type runningEntry struct {
	mu    sync.Mutex
	stats domain.ProductStatistics
}

// NewRunningTable creates an empty running table.
func NewRunningTable() *RunningTable {
	return &RunningTable{entries: make(map[string]*runningEntry)}
}

func (t *RunningTable) entry(product string) *runningEntry {
	t.mu.RLock()
	e, ok := t.entries[product]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[product]; ok {
		return e
	}
	e = &runningEntry{stats: domain.ProductStatistics{Product: product}}
	t.entries[product] = e
	return e
}

// Update folds one order into the product's running statistics.
func (t *RunningTable) Update(product string, price float32, at time.Time) {
	e := t.entry(product)
	e.mu.Lock()
	e.stats.Update(price, at)
	e.mu.Unlock()
	metrics.AggregationUpdates.WithLabelValues("running").Inc()
}

// Get returns a snapshot of one product's statistics.
func (t *RunningTable) Get(product string) (domain.ProductStatistics, bool) {
	t.mu.RLock()
	e, ok := t.entries[product]
	t.mu.RUnlock()
	if !ok {
		return domain.ProductStatistics{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats, true
}

// All returns a snapshot of every product's statistics.
func (t *RunningTable) All() []domain.ProductStatistics {
	t.mu.RLock()
	entries := make([]*runningEntry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	out := make([]domain.ProductStatistics, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.stats)
		e.mu.Unlock()
	}
	return out
}

// Summary computes the cross-product rollup.
func (t *RunningTable) Summary() domain.StatisticsSummary {
	all := t.All()

	var s domain.StatisticsSummary
	for _, stats := range all {
		s.TotalOrders += stats.OrderCount
		s.TotalRevenue += stats.TotalRevenue
	}
	s.ProductCount = len(all)
	if s.ProductCount > 0 {
		s.AvgRevenuePerProduct = s.TotalRevenue / float64(s.ProductCount)
	}
	return s
}
