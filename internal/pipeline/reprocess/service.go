package reprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
	"github.com/vietddude/orderflow/internal/metrics"
	"github.com/vietddude/orderflow/internal/stream"
)

// Outcome is the result of a single reprocess request.
type Outcome string

const (
	// OutcomeReprocessed means the order was re-emitted and the record
	// transitioned to REPROCESSED.
	OutcomeReprocessed Outcome = "REPROCESSED"

	// OutcomeDiscarded means the record transitioned to DISCARDED.
	OutcomeDiscarded Outcome = "DISCARDED"

	// OutcomeNotApplicable means the record does not exist or is no longer
	// pending. The request is a no-op.
	OutcomeNotApplicable Outcome = "NOT_APPLICABLE"
)

// Tally summarizes a bulk reprocess run.
type Tally struct {
	Attempted   int `json:"attempted"`
	Reprocessed int `json:"reprocessed"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Service re-emits dead-lettered orders back onto their origin topic for
// another pass through the pipeline.
type Service struct {
	repo      storage.FailedOrderRepository
	publisher stream.Publisher
	// defaultTopic is used when a record carries no origin topic.
	defaultTopic string
	now          func() time.Time
}

// NewService creates a reprocessing service.
func NewService(repo storage.FailedOrderRepository, publisher stream.Publisher, defaultTopic string) *Service {
	return &Service{
		repo:         repo,
		publisher:    publisher,
		defaultTopic: defaultTopic,
		now:          time.Now,
	}
}

// Reprocess re-emits one pending failed order. The order is published first
// and the record committed to REPROCESSED after; a publish failure leaves
// the record pending so the request can be repeated.
func (s *Service) Reprocess(ctx context.Context, id, actor string) (Outcome, error) {
	fo, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.Reprocessed.WithLabelValues("not_applicable").Inc()
			return OutcomeNotApplicable, nil
		}
		return "", fmt.Errorf("failed to load failed order %s: %w", id, err)
	}

	if fo.Status != domain.FailedOrderPending {
		slog.Info("skipping non-pending failed order",
			"id", id,
			"status", fo.Status)
		metrics.Reprocessed.WithLabelValues("not_applicable").Inc()
		return OutcomeNotApplicable, nil
	}

	if err := s.emit(ctx, fo); err != nil {
		metrics.Reprocessed.WithLabelValues("emit_failed").Inc()
		return "", fmt.Errorf("failed to re-emit order %s: %w", fo.OrderID, err)
	}

	if err := s.repo.MarkReprocessed(ctx, id, actor, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			// A concurrent request won the transition after we re-emitted.
			// The record is consistent; only the duplicate emit is logged.
			slog.Warn("failed order transitioned concurrently after re-emit",
				"id", id,
				"order_id", fo.OrderID)
			metrics.Reprocessed.WithLabelValues("not_applicable").Inc()
			return OutcomeNotApplicable, nil
		}
		// The order is already back on the stream. Report the commit
		// failure so the operator knows the record may be replayed twice.
		metrics.Reprocessed.WithLabelValues("commit_failed").Inc()
		return "", fmt.Errorf("order %s re-emitted but not committed: %w", fo.OrderID, err)
	}

	slog.Info("failed order reprocessed",
		"id", id,
		"order_id", fo.OrderID,
		"actor", actor)
	metrics.Reprocessed.WithLabelValues("reprocessed").Inc()
	return OutcomeReprocessed, nil
}

// ReprocessAllPending re-emits every pending failed order and reports a
// tally. Individual failures do not stop the run.
func (s *Service) ReprocessAllPending(ctx context.Context, actor string) (Tally, error) {
	pending, err := s.repo.List(ctx, storage.FailedOrderFilter{Status: domain.FailedOrderPending})
	if err != nil {
		return Tally{}, fmt.Errorf("failed to list pending orders: %w", err)
	}

	var tally Tally
	for _, fo := range pending {
		tally.Attempted++
		outcome, err := s.Reprocess(ctx, fo.ID, actor)
		switch {
		case err != nil:
			tally.Failed++
			slog.Error("bulk reprocess entry failed",
				"id", fo.ID,
				"error", err)
		case outcome == OutcomeReprocessed:
			tally.Reprocessed++
		default:
			tally.Skipped++
		}
	}

	slog.Info("bulk reprocess finished",
		"attempted", tally.Attempted,
		"reprocessed", tally.Reprocessed,
		"failed", tally.Failed)
	return tally, nil
}

// Discard marks a pending failed order DISCARDED. Discarding a record that
// is already terminal is a no-op.
func (s *Service) Discard(ctx context.Context, id string) (Outcome, error) {
	fo, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return OutcomeNotApplicable, nil
		}
		return "", fmt.Errorf("failed to load failed order %s: %w", id, err)
	}

	if fo.Status.Terminal() {
		return OutcomeNotApplicable, nil
	}

	if err := s.repo.SetStatus(ctx, id, domain.FailedOrderDiscarded); err != nil {
		if errors.Is(err, storage.ErrNotPending) || errors.Is(err, storage.ErrNotFound) {
			return OutcomeNotApplicable, nil
		}
		return "", fmt.Errorf("failed to discard order %s: %w", id, err)
	}

	slog.Info("failed order discarded", "id", id, "order_id", fo.OrderID)
	return OutcomeDiscarded, nil
}

func (s *Service) emit(ctx context.Context, fo *domain.FailedOrder) error {
	value, err := stream.EncodeOrder(domain.Order{
		OrderID: fo.OrderID,
		Product: fo.Product,
		Price:   fo.Price,
	})
	if err != nil {
		return err
	}

	topic := fo.OriginalTopic
	if topic == "" {
		topic = s.defaultTopic
	}

	headers := map[string]string{
		stream.HeaderEventTime: s.now().Format(time.RFC3339Nano),
	}
	if fo.CorrelationID != "" {
		headers[stream.HeaderCorrelationID] = fo.CorrelationID
	}

	return s.publisher.Publish(ctx, stream.Message{
		Topic:   topic,
		Key:     fo.OrderID,
		Value:   value,
		Headers: headers,
	})
}
