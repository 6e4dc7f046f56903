package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
)

// uniqueViolation is the postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

// OrderRepo implements storage.OrderRepository using PostgreSQL.
type OrderRepo struct {
	db *DB
}

// NewOrderRepo creates a new PostgreSQL order repository.
func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{db: db}
}

type orderRow struct {
	ID            string    `db:"id"`
	OrderID       string    `db:"order_id"`
	Product       string    `db:"product"`
	Price         float32   `db:"price"`
	CorrelationID string    `db:"correlation_id"`
	ReceivedAt    time.Time `db:"received_at"`
	ProcessedAt   time.Time `db:"processed_at"`
	Status        string    `db:"status"`
}

func (r orderRow) toDomain() *domain.PersistedOrder {
	return &domain.PersistedOrder{
		ID:            r.ID,
		OrderID:       r.OrderID,
		Product:       r.Product,
		Price:         r.Price,
		CorrelationID: r.CorrelationID,
		ReceivedAt:    r.ReceivedAt,
		ProcessedAt:   r.ProcessedAt,
		Status:        r.Status,
	}
}

// Save persists a processed order. The unique constraint on order_id makes
// duplicate detection a storage concern; breaches surface as
// storage.ErrDuplicateOrder.
func (r *OrderRepo) Save(ctx context.Context, order *domain.PersistedOrder) error {
	query := `
		INSERT INTO orders (id, order_id, product, price, correlation_id, received_at, processed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.OrderID,
		order.Product,
		order.Price,
		order.CorrelationID,
		order.ReceivedAt,
		order.ProcessedAt,
		order.Status,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return storage.ErrDuplicateOrder
		}
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// GetByOrderID retrieves an order by its logical order id.
func (r *OrderRepo) GetByOrderID(
	ctx context.Context,
	orderID string,
) (*domain.PersistedOrder, error) {
	query := `
		SELECT id, order_id, product, price, correlation_id, received_at, processed_at, status
		FROM orders
		WHERE order_id = $1
	`
	var row orderRow
	err := r.db.GetContext(ctx, &row, query, orderID)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return row.toDomain(), nil
}

// Exists reports whether an order with the given order id is recorded.
func (r *OrderRepo) Exists(ctx context.Context, orderID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM orders WHERE order_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, orderID); err != nil {
		return false, fmt.Errorf("failed to check order existence: %w", err)
	}
	return exists, nil
}

// List retrieves persisted orders, newest first.
func (r *OrderRepo) List(ctx context.Context, limit int) ([]*domain.PersistedOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, order_id, product, price, correlation_id, received_at, processed_at, status
		FROM orders
		ORDER BY processed_at DESC
		LIMIT $1
	`
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := make([]*domain.PersistedOrder, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toDomain())
	}
	return orders, nil
}

// Count returns the number of persisted orders.
func (r *OrderRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM orders`); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}
