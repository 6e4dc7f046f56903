package processor

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage/memory"
	"github.com/vietddude/orderflow/internal/pipeline/classify"
)

func newTestProcessor(t *testing.T) (*Processor, *memory.OrderRepo) {
	t.Helper()
	store := memory.NewMemoryStorage()
	repo := memory.NewOrderRepo(store)
	// Seeded rng: suffix-95 behavior deterministic in tests.
	return New(Config{}, repo, rand.New(rand.NewSource(1))), repo
}

func assertFailure(
	t *testing.T,
	err error,
	wantType domain.FailureType,
	wantCategory domain.FailureCategory,
) {
	t.Helper()
	if err == nil {
		t.Fatal("expected failure, got nil")
	}
	var pe *classify.ProcessingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProcessingError, got %T: %v", err, err)
	}
	if pe.Type != wantType {
		t.Errorf("expected %s, got %s", wantType, pe.Type)
	}
	if pe.Category != wantCategory {
		t.Errorf("expected %s, got %s", wantCategory, pe.Category)
	}
}

func TestProcess_ValidOrder(t *testing.T) {
	p, _ := newTestProcessor(t)
	order := domain.Order{OrderID: "ord-1001", Product: "widget", Price: 49.99}

	if err := p.Process(context.Background(), order, "cid-1"); err != nil {
		t.Errorf("expected success, got %v", err)
	}
}

func TestProcess_NonPositivePrice(t *testing.T) {
	p, _ := newTestProcessor(t)

	for _, price := range []float32{0, -1, -99.5} {
		order := domain.Order{OrderID: "ord-1", Product: "widget", Price: price}
		err := p.Process(context.Background(), order, "cid-1")
		assertFailure(t, err, domain.FailurePermanent, domain.CategoryInvalidPrice)
	}
}

func TestProcess_PriceAboveMax(t *testing.T) {
	p, _ := newTestProcessor(t)
	order := domain.Order{OrderID: "ord-1", Product: "widget", Price: 10001}

	err := p.Process(context.Background(), order, "cid-1")
	assertFailure(t, err, domain.FailurePermanent, domain.CategoryValidationError)
}

func TestProcess_EmptyProduct(t *testing.T) {
	p, _ := newTestProcessor(t)
	order := domain.Order{OrderID: "ord-1", Product: "   ", Price: 10}

	err := p.Process(context.Background(), order, "cid-1")
	assertFailure(t, err, domain.FailurePermanent, domain.CategoryValidationError)
}

func TestProcess_ValidationBeforeExternalChecks(t *testing.T) {
	p, _ := newTestProcessor(t)
	// Suffix 99 would be a temporary network failure, but the invalid price
	// must win: no retry budget is ever spent on an unprocessable order.
	order := domain.Order{OrderID: "ord-99", Product: "widget", Price: -5}

	err := p.Process(context.Background(), order, "cid-1")
	assertFailure(t, err, domain.FailurePermanent, domain.CategoryInvalidPrice)
}

func TestProcess_DuplicateInStore(t *testing.T) {
	p, repo := newTestProcessor(t)
	existing := &domain.PersistedOrder{ID: "id-1", OrderID: "ord-1", Product: "widget", Price: 5}
	if err := repo.Save(context.Background(), existing); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	order := domain.Order{OrderID: "ord-1", Product: "widget", Price: 5}
	err := p.Process(context.Background(), order, "cid-1")
	assertFailure(t, err, domain.FailurePermanent, domain.CategoryDuplicateOrder)
}

func TestProcess_BusinessRuleSuffixes(t *testing.T) {
	p, _ := newTestProcessor(t)

	cases := []struct {
		orderID string
		want    domain.FailureCategory
	}{
		{"ord-77", domain.CategoryDuplicateOrder},
		{"ord-66", domain.CategoryProductNotFound},
		{"ord-55", domain.CategoryInsufficientInventory},
	}

	for _, c := range cases {
		order := domain.Order{OrderID: c.orderID, Product: "widget", Price: 10}
		err := p.Process(context.Background(), order, "cid-1")
		assertFailure(t, err, domain.FailurePermanent, c.want)
	}
}

func TestProcess_ExternalServiceSuffixes(t *testing.T) {
	p, _ := newTestProcessor(t)

	cases := []struct {
		orderID string
		want    domain.FailureCategory
	}{
		{"ord-99", domain.CategoryNetworkError},
		{"ord-98", domain.CategoryDatabaseTimeout},
		{"ord-97", domain.CategoryServiceUnavailable},
		{"ord-96", domain.CategoryRateLimitExceeded},
	}

	for _, c := range cases {
		order := domain.Order{OrderID: c.orderID, Product: "widget", Price: 10}
		err := p.Process(context.Background(), order, "cid-1")
		assertFailure(t, err, domain.FailureTemporary, c.want)
	}
}
