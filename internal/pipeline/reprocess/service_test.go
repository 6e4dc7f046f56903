package reprocess

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
	"github.com/vietddude/orderflow/internal/infra/storage/memory"
	"github.com/vietddude/orderflow/internal/stream"
)

// =============================================================================
// Mock Publisher
// =============================================================================

type capturePublisher struct {
	mu       sync.Mutex
	messages []stream.Message
	err      error
}

func (p *capturePublisher) Publish(ctx context.Context, msg stream.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturePublisher) published() []stream.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]stream.Message(nil), p.messages...)
}

// =============================================================================
// Helpers
// =============================================================================

func newTestService(t *testing.T) (*Service, storage.FailedOrderRepository, *capturePublisher) {
	t.Helper()
	repo := memory.NewFailedOrderRepo(memory.NewMemoryStorage())
	pub := &capturePublisher{}
	return NewService(repo, pub, "orders"), repo, pub
}

func pendingOrder(t *testing.T, repo storage.FailedOrderRepository) *domain.FailedOrder {
	t.Helper()
	fo := &domain.FailedOrder{
		ID:              uuid.New().String(),
		OrderID:         "order-99",
		Product:         "widget",
		Price:           42,
		FailureType:     domain.FailureTemporary,
		FailureCategory: domain.CategoryNetworkError,
		ErrorMessage:    "network error calling payment service",
		RetryCount:      4,
		OriginalTopic:   "orders",
		CorrelationID:   "cid-1",
		FailedAt:        time.Now(),
		Status:          domain.FailedOrderPending,
	}
	if err := repo.Add(context.Background(), fo); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return fo
}

// =============================================================================
// Tests
// =============================================================================

func TestReprocessPendingOrder(t *testing.T) {
	svc, repo, pub := newTestService(t)
	fo := pendingOrder(t, repo)

	outcome, err := svc.Reprocess(context.Background(), fo.ID, "ops")
	if err != nil {
		t.Fatalf("Reprocess failed: %v", err)
	}
	if outcome != OutcomeReprocessed {
		t.Fatalf("expected %s, got %s", OutcomeReprocessed, outcome)
	}

	msgs := pub.published()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(msgs))
	}
	if msgs[0].Topic != "orders" || msgs[0].Key != "order-99" {
		t.Errorf("unexpected message routing: topic=%s key=%s", msgs[0].Topic, msgs[0].Key)
	}
	order, err := stream.DecodeOrder(msgs[0].Value)
	if err != nil {
		t.Fatalf("published payload does not decode: %v", err)
	}
	if order.OrderID != "order-99" || order.Product != "widget" || order.Price != 42 {
		t.Errorf("unexpected payload: %+v", order)
	}

	got, err := repo.Get(context.Background(), fo.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.FailedOrderReprocessed {
		t.Errorf("expected REPROCESSED, got %s", got.Status)
	}
	if got.ReprocessedBy != "ops" || got.ReprocessedAt == nil {
		t.Errorf("reprocess audit fields not set: by=%q at=%v", got.ReprocessedBy, got.ReprocessedAt)
	}
}

func TestReprocessUnknownID(t *testing.T) {
	svc, _, pub := newTestService(t)

	outcome, err := svc.Reprocess(context.Background(), uuid.New().String(), "ops")
	if err != nil {
		t.Fatalf("Reprocess failed: %v", err)
	}
	if outcome != OutcomeNotApplicable {
		t.Fatalf("expected %s, got %s", OutcomeNotApplicable, outcome)
	}
	if len(pub.published()) != 0 {
		t.Error("nothing should be published for an unknown id")
	}
}

func TestReprocessTerminalOrderIsNoOp(t *testing.T) {
	svc, repo, pub := newTestService(t)
	fo := pendingOrder(t, repo)
	if err := repo.SetStatus(context.Background(), fo.ID, domain.FailedOrderDiscarded); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	outcome, err := svc.Reprocess(context.Background(), fo.ID, "ops")
	if err != nil {
		t.Fatalf("Reprocess failed: %v", err)
	}
	if outcome != OutcomeNotApplicable {
		t.Fatalf("expected %s, got %s", OutcomeNotApplicable, outcome)
	}
	if len(pub.published()) != 0 {
		t.Error("terminal records must not be re-emitted")
	}
}

func TestReprocessEmitFailureLeavesPending(t *testing.T) {
	svc, repo, pub := newTestService(t)
	fo := pendingOrder(t, repo)
	pub.err = errors.New("broker unavailable")

	_, err := svc.Reprocess(context.Background(), fo.ID, "ops")
	if err == nil {
		t.Fatal("expected error when publish fails")
	}

	got, err := repo.Get(context.Background(), fo.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.FailedOrderPending {
		t.Errorf("record must stay PENDING after emit failure, got %s", got.Status)
	}
}

// racingRepo simulates an operator that completes the transition between our
// pending check and our commit.
type racingRepo struct {
	storage.FailedOrderRepository
}

func (r *racingRepo) MarkReprocessed(ctx context.Context, id, actor string, at time.Time) error {
	return storage.ErrNotPending
}

func TestReprocessConcurrentTransitionIsNotApplicable(t *testing.T) {
	base := memory.NewFailedOrderRepo(memory.NewMemoryStorage())
	pub := &capturePublisher{}
	svc := NewService(&racingRepo{FailedOrderRepository: base}, pub, "orders")
	fo := pendingOrder(t, base)

	outcome, err := svc.Reprocess(context.Background(), fo.ID, "ops")
	if err != nil {
		t.Fatalf("Reprocess failed: %v", err)
	}
	if outcome != OutcomeNotApplicable {
		t.Fatalf("expected %s, got %s", OutcomeNotApplicable, outcome)
	}
}

func TestReprocessAllPending(t *testing.T) {
	svc, repo, _ := newTestService(t)
	a := pendingOrder(t, repo)
	b := pendingOrder(t, repo)
	c := pendingOrder(t, repo)
	if err := repo.SetStatus(context.Background(), c.ID, domain.FailedOrderDiscarded); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	tally, err := svc.ReprocessAllPending(context.Background(), "ops")
	if err != nil {
		t.Fatalf("ReprocessAllPending failed: %v", err)
	}
	if tally.Attempted != 2 || tally.Reprocessed != 2 || tally.Failed != 0 {
		t.Fatalf("unexpected tally: %+v", tally)
	}

	for _, id := range []string{a.ID, b.ID} {
		got, err := repo.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != domain.FailedOrderReprocessed {
			t.Errorf("order %s: expected REPROCESSED, got %s", id, got.Status)
		}
	}
}

func TestDiscardPendingOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	fo := pendingOrder(t, repo)

	outcome, err := svc.Discard(context.Background(), fo.ID)
	if err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if outcome != OutcomeDiscarded {
		t.Fatalf("expected %s, got %s", OutcomeDiscarded, outcome)
	}

	got, err := repo.Get(context.Background(), fo.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.FailedOrderDiscarded {
		t.Errorf("expected DISCARDED, got %s", got.Status)
	}
}

func TestDiscardIsIdempotentOnTerminal(t *testing.T) {
	svc, repo, _ := newTestService(t)
	fo := pendingOrder(t, repo)

	if _, err := svc.Discard(context.Background(), fo.ID); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	outcome, err := svc.Discard(context.Background(), fo.ID)
	if err != nil {
		t.Fatalf("second Discard failed: %v", err)
	}
	if outcome != OutcomeNotApplicable {
		t.Fatalf("expected %s, got %s", OutcomeNotApplicable, outcome)
	}
}
