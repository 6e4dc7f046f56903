package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
	"github.com/vietddude/orderflow/internal/metrics"
)

// ActivitySource reports when a consuming component last saw a message.
// A zero time means no message has arrived yet.
type ActivitySource interface {
	LastActivity() time.Time
}

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor aggregates health status from the pipeline's components.
type Monitor struct {
	pipeline    ActivitySource
	aggregation ActivitySource
	failedRepo  storage.FailedOrderRepository
	// nil pingers are skipped (the in-memory backends have nothing to ping)
	db    Pinger
	redis Pinger

	// staleAfter is how long a consumer may go without traffic before it is
	// reported degraded. Idle systems are degraded, not critical.
	staleAfter time.Duration

	// pendingCritical is the dead-letter backlog size that flips the DLQ
	// component to critical.
	pendingCritical int

	mu         sync.RWMutex
	lastCheck  time.Time
	lastReport Report

	now func() time.Time
}

// NewMonitor creates a health monitor. db and redis may be nil.
func NewMonitor(
	pipeline ActivitySource,
	aggregation ActivitySource,
	failedRepo storage.FailedOrderRepository,
	db Pinger,
	redis Pinger,
) *Monitor {
	return &Monitor{
		pipeline:        pipeline,
		aggregation:     aggregation,
		failedRepo:      failedRepo,
		db:              db,
		redis:           redis,
		staleAfter:      time.Minute,
		pendingCritical: 100,
		now:             time.Now,
	}
}

// Check performs a health check across all components. Results are cached
// for a short period to keep the endpoint cheap under probe traffic.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.lastCheck) < 5*time.Second && m.lastReport.Components != nil {
		return m.lastReport
	}

	report := Report{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
	}

	report.Components["pipeline"] = m.checkActivity("pipeline", m.pipeline)
	report.Components["aggregation"] = m.checkActivity("aggregation", m.aggregation)
	report.Components["dead_letters"] = m.checkDeadLetters(ctx, &report)

	if m.db != nil {
		report.Components["database"] = m.checkPing(ctx, "database", m.db)
	}
	if m.redis != nil {
		report.Components["redis"] = m.checkPing(ctx, "redis", m.redis)
	}

	for _, c := range report.Components {
		if worse(c.Status, report.SystemStatus) {
			report.SystemStatus = c.Status
		}
	}

	m.lastCheck = m.now()
	m.lastReport = report
	return report
}

func (m *Monitor) checkActivity(name string, src ActivitySource) ComponentHealth {
	h := ComponentHealth{Name: name, Status: StatusHealthy}
	last := src.LastActivity()
	if last.IsZero() {
		h.Status = StatusDegraded
		h.Message = "no messages seen yet"
		return h
	}
	if idle := m.now().Sub(last); idle > m.staleAfter {
		h.Status = StatusDegraded
		h.Message = fmt.Sprintf("no messages for %s", idle.Round(time.Second))
	}
	return h
}

func (m *Monitor) checkDeadLetters(ctx context.Context, report *Report) ComponentHealth {
	h := ComponentHealth{Name: "dead_letters", Status: StatusHealthy}

	counts, err := m.failedRepo.CountByStatus(ctx)
	if err != nil {
		h.Status = StatusDegraded
		h.Message = fmt.Sprintf("count failed: %v", err)
		return h
	}

	pending := counts[domain.FailedOrderPending]
	report.DLQPending = pending
	metrics.DLQPending.Set(float64(pending))

	if pending >= m.pendingCritical {
		h.Status = StatusCritical
		h.Message = fmt.Sprintf("%d pending failed orders", pending)
	} else if pending > 0 {
		h.Message = fmt.Sprintf("%d pending failed orders", pending)
	}
	return h
}

func (m *Monitor) checkPing(ctx context.Context, name string, p Pinger) ComponentHealth {
	h := ComponentHealth{Name: name, Status: StatusHealthy}
	if err := p.Health(ctx); err != nil {
		h.Status = StatusCritical
		h.Message = err.Error()
	}
	return h
}

// worse reports whether a is a worse status than b.
func worse(a, b SystemStatus) bool {
	return rank(a) > rank(b)
}

func rank(s SystemStatus) int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
