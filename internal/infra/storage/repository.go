package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateOrder is returned when an order with the same order_id
	// has already been persisted
	ErrDuplicateOrder = errors.New("order already exists")

	// ErrNotPending is returned when a status transition finds the record
	// already terminal, e.g. two operators racing over the same dead letter
	ErrNotPending = errors.New("failed order is not pending")
)

// OrderRepository handles persisted order storage operations
type OrderRepository interface {
	// Save persists a successfully processed order. Returns
	// ErrDuplicateOrder when the order_id is already recorded.
	Save(ctx context.Context, order *domain.PersistedOrder) error

	// GetByOrderID retrieves an order by its logical order id
	GetByOrderID(ctx context.Context, orderID string) (*domain.PersistedOrder, error)

	// Exists reports whether an order with the given order id is recorded
	Exists(ctx context.Context, orderID string) (bool, error)

	// List retrieves persisted orders, newest first
	List(ctx context.Context, limit int) ([]*domain.PersistedOrder, error)

	// Count returns the number of persisted orders
	Count(ctx context.Context) (int, error)
}

// FailedOrderFilter narrows dead-letter listings. Zero values match all.
type FailedOrderFilter struct {
	Status   domain.FailedOrderStatus
	Category domain.FailureCategory
}

// FailedOrderRepository is the dead-letter sink
type FailedOrderRepository interface {
	// Add records a failed order
	Add(ctx context.Context, fo *domain.FailedOrder) error

	// Get retrieves a failed order by id
	Get(ctx context.Context, id string) (*domain.FailedOrder, error)

	// List retrieves failed orders matching the filter, newest first
	List(ctx context.Context, filter FailedOrderFilter) ([]*domain.FailedOrder, error)

	// SetStatus updates lifecycle state. Only PENDING records transition;
	// a record that is already terminal yields ErrNotPending.
	SetStatus(ctx context.Context, id string, status domain.FailedOrderStatus) error

	// MarkReprocessed transitions a PENDING record to REPROCESSED with actor
	// and time. A record that is already terminal yields ErrNotPending.
	MarkReprocessed(ctx context.Context, id, actor string, at time.Time) error

	// CountByStatus returns the number of failed orders per status
	CountByStatus(ctx context.Context) (map[domain.FailedOrderStatus]int, error)

	// CountByFailureType returns the number of failed orders per failure type
	CountByFailureType(ctx context.Context) (map[domain.FailureType]int, error)
}
