package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
	"github.com/vietddude/orderflow/internal/metrics"
	"github.com/vietddude/orderflow/internal/pipeline/classify"
	"github.com/vietddude/orderflow/internal/pipeline/retry"
	"github.com/vietddude/orderflow/internal/stream"
)

// State is the per-delivery position in the consumption state machine.
type State string

const (
	StateReceived       State = "received"
	StateValidating     State = "validating"
	StateSucceeded      State = "succeeded"
	StateRetryScheduled State = "retry_scheduled"
	StateDeadLettered   State = "dead_lettered"
)

// OrderProcessor runs the per-order checks.
type OrderProcessor interface {
	Process(ctx context.Context, order domain.Order, correlationID string) error
}

// Deferrer schedules a failed delivery for deferred re-delivery.
type Deferrer interface {
	Defer(ctx context.Context, msg *stream.Message, failedAttempt int) error
}

// Config holds the pipeline's collaborators and policy.
type Config struct {
	Orders      storage.OrderRepository
	DeadLetters storage.FailedOrderRepository
	Processor   OrderProcessor
	Lanes       Deferrer
	Policy      retry.Policy

	// WriteTimeout bounds each durable write.
	WriteTimeout time.Duration
}

// Pipeline drives one delivery through
// Received → Validating → {Succeeded, RetryScheduled, DeadLettered}.
//
// Every terminal transition acknowledges the delivery exactly once, and only
// after its durable side effect completed. Infrastructure faults return an
// error instead, which the broker answers with redelivery, so no path drops
// an event.
type Pipeline struct {
	cfg      Config
	lastSeen atomic.Int64 // unix nano of the last handled delivery, for health
	now      func() time.Time
}

// NewPipeline creates the consumption pipeline.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Pipeline{cfg: cfg, now: time.Now}
}

// Handle is the stream handler for the orders topic. A nil return
// acknowledges the delivery.
func (p *Pipeline) Handle(ctx context.Context, msg *stream.Message) error {
	start := p.now()
	p.lastSeen.Store(start.UnixNano())

	attempt := msg.Attempt()
	cid := msg.Headers[stream.HeaderCorrelationID]

	order, err := stream.DecodeOrder(msg.Value)
	if err != nil {
		// An undecodable payload can never succeed; straight to the sink.
		return p.deadLetter(ctx, msg, domain.Order{}, attempt, cid,
			domain.FailurePermanent, domain.CategoryValidationError, err.Error())
	}

	slog.Info("Consuming order",
		"state", StateReceived,
		"attempt", attempt,
		"topic", msg.Topic,
		"cid", cid,
		"order_id", order.OrderID,
		"product", order.Product,
		"price", order.Price,
	)

	if err := p.cfg.Processor.Process(ctx, order, cid); err != nil {
		return p.handleFailure(ctx, msg, order, attempt, cid, err)
	}

	if err := p.persist(ctx, msg, order, cid); err != nil {
		if errors.Is(err, storage.ErrDuplicateOrder) {
			// Second delivery of an already-committed order id; the first
			// record stays processed, this one is dead-lettered.
			return p.deadLetter(ctx, msg, order, attempt, cid,
				domain.FailurePermanent, domain.CategoryDuplicateOrder,
				"order already exists in store: "+order.OrderID)
		}
		// Store fault: leave unacknowledged, the broker redelivers.
		return fmt.Errorf("failed to persist order %s: %w", order.OrderID, err)
	}

	metrics.OrdersProcessed.WithLabelValues(string(StateSucceeded)).Inc()
	metrics.ProcessingLatency.Observe(p.now().Sub(start).Seconds())
	slog.Info("Order processed",
		"state", StateSucceeded,
		"order_id", order.OrderID,
		"attempt", attempt,
	)
	return nil
}

// LastActivity returns when the pipeline last handled a delivery.
func (p *Pipeline) LastActivity() time.Time {
	ns := p.lastSeen.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (p *Pipeline) persist(
	ctx context.Context,
	msg *stream.Message,
	order domain.Order,
	cid string,
) error {
	writeCtx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
	defer cancel()

	now := p.now()
	return p.cfg.Orders.Save(writeCtx, &domain.PersistedOrder{
		ID:            uuid.New().String(),
		OrderID:       order.OrderID,
		Product:       order.Product,
		Price:         order.Price,
		CorrelationID: cid,
		ReceivedAt:    msg.EventTime(),
		ProcessedAt:   now,
		Status:        domain.OrderStatusProcessed,
	})
}

func (p *Pipeline) handleFailure(
	ctx context.Context,
	msg *stream.Message,
	order domain.Order,
	attempt int,
	cid string,
	procErr error,
) error {
	ft, category := classify.Classify(procErr)

	switch p.cfg.Policy.Decide(ft, attempt) {
	case retry.DecisionRetry:
		if err := p.cfg.Lanes.Defer(ctx, msg, attempt); err != nil {
			// Deferral is the terminal side effect of this transition; if it
			// failed the delivery stays unacknowledged.
			return fmt.Errorf("failed to schedule retry for %s: %w", order.OrderID, err)
		}
		metrics.OrdersProcessed.WithLabelValues(string(StateRetryScheduled)).Inc()
		slog.Warn("Temporary failure, retry scheduled",
			"state", StateRetryScheduled,
			"order_id", order.OrderID,
			"attempt", attempt,
			"category", category,
			"error", procErr,
		)
		return nil

	default: // retry.DecisionDeadLetter
		reason := procErr.Error()
		if ft == domain.FailureTemporary {
			reason = fmt.Sprintf("retries exhausted after %d attempts: %s", attempt, reason)
		}
		return p.deadLetter(ctx, msg, order, attempt, cid, ft, category, reason)
	}
}

func (p *Pipeline) deadLetter(
	ctx context.Context,
	msg *stream.Message,
	order domain.Order,
	attempt int,
	cid string,
	ft domain.FailureType,
	category domain.FailureCategory,
	reason string,
) error {
	writeCtx, cancel := context.WithTimeout(ctx, p.cfg.WriteTimeout)
	defer cancel()

	fo := &domain.FailedOrder{
		ID:              uuid.New().String(),
		OrderID:         order.OrderID,
		Product:         order.Product,
		Price:           order.Price,
		FailureType:     ft,
		FailureCategory: category,
		ErrorMessage:    reason,
		RetryCount:      attempt,
		OriginalTopic:   msg.OriginTopic(),
		CorrelationID:   cid,
		FailedAt:        p.now(),
		Status:          domain.FailedOrderPending,
	}

	if err := p.cfg.DeadLetters.Add(writeCtx, fo); err != nil {
		// Sink fault: the delivery stays unacknowledged rather than dropped.
		return fmt.Errorf("failed to dead-letter order %s: %w", order.OrderID, err)
	}

	metrics.OrdersProcessed.WithLabelValues(string(StateDeadLettered)).Inc()
	metrics.DeadLettered.WithLabelValues(string(ft), string(category)).Inc()
	slog.Error("Order dead-lettered",
		"state", StateDeadLettered,
		"order_id", order.OrderID,
		"failure_type", ft,
		"category", category,
		"retry_count", attempt,
		"reason", reason,
	)
	return nil
}
