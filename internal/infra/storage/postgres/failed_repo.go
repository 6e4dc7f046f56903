package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
)

// FailedOrderRepo implements storage.FailedOrderRepository using PostgreSQL.
type FailedOrderRepo struct {
	db *DB
}

// NewFailedOrderRepo creates a new PostgreSQL dead-letter repository.
func NewFailedOrderRepo(db *DB) *FailedOrderRepo {
	return &FailedOrderRepo{db: db}
}

type failedOrderRow struct {
	ID              string         `db:"id"`
	OrderID         string         `db:"order_id"`
	Product         string         `db:"product"`
	Price           float32        `db:"price"`
	FailureType     string         `db:"failure_type"`
	FailureCategory string         `db:"failure_category"`
	ErrorMessage    string         `db:"error_message"`
	RetryCount      int            `db:"retry_count"`
	OriginalTopic   string         `db:"original_topic"`
	CorrelationID   string         `db:"correlation_id"`
	FailedAt        time.Time      `db:"failed_at"`
	Status          string         `db:"status"`
	ReprocessedAt   sql.NullTime   `db:"reprocessed_at"`
	ReprocessedBy   sql.NullString `db:"reprocessed_by"`
}

func (r failedOrderRow) toDomain() *domain.FailedOrder {
	fo := &domain.FailedOrder{
		ID:              r.ID,
		OrderID:         r.OrderID,
		Product:         r.Product,
		Price:           r.Price,
		FailureType:     domain.FailureType(r.FailureType),
		FailureCategory: domain.FailureCategory(r.FailureCategory),
		ErrorMessage:    r.ErrorMessage,
		RetryCount:      r.RetryCount,
		OriginalTopic:   r.OriginalTopic,
		CorrelationID:   r.CorrelationID,
		FailedAt:        r.FailedAt,
		Status:          domain.FailedOrderStatus(r.Status),
	}
	if r.ReprocessedAt.Valid {
		at := r.ReprocessedAt.Time
		fo.ReprocessedAt = &at
	}
	if r.ReprocessedBy.Valid {
		fo.ReprocessedBy = r.ReprocessedBy.String
	}
	return fo
}

const failedOrderColumns = `
	id, order_id, product, price, failure_type, failure_category,
	error_message, retry_count, original_topic, correlation_id,
	failed_at, status, reprocessed_at, reprocessed_by
`

// Add records a failed order with status PENDING unless set.
func (r *FailedOrderRepo) Add(ctx context.Context, fo *domain.FailedOrder) error {
	status := string(fo.Status)
	if status == "" {
		status = string(domain.FailedOrderPending)
	}

	query := `
		INSERT INTO failed_orders (id, order_id, product, price, failure_type, failure_category,
			error_message, retry_count, original_topic, correlation_id, failed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		fo.ID,
		fo.OrderID,
		fo.Product,
		fo.Price,
		string(fo.FailureType),
		string(fo.FailureCategory),
		fo.ErrorMessage,
		fo.RetryCount,
		fo.OriginalTopic,
		fo.CorrelationID,
		fo.FailedAt,
		status,
	)
	if err != nil {
		return fmt.Errorf("failed to add failed order: %w", err)
	}
	return nil
}

// Get retrieves a failed order by id.
func (r *FailedOrderRepo) Get(ctx context.Context, id string) (*domain.FailedOrder, error) {
	query := `SELECT ` + failedOrderColumns + ` FROM failed_orders WHERE id = $1`

	var row failedOrderRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed order: %w", err)
	}
	return row.toDomain(), nil
}

// List retrieves failed orders matching the filter, newest first.
func (r *FailedOrderRepo) List(
	ctx context.Context,
	filter storage.FailedOrderFilter,
) ([]*domain.FailedOrder, error) {
	query := `SELECT ` + failedOrderColumns + ` FROM failed_orders WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		query += fmt.Sprintf(" AND failure_category = $%d", len(args))
	}
	query += " ORDER BY failed_at DESC"

	var rows []failedOrderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list failed orders: %w", err)
	}

	out := make([]*domain.FailedOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// SetStatus updates lifecycle state. The WHERE clause pins the current
// status so two operators racing over the same record cannot both win.
func (r *FailedOrderRepo) SetStatus(
	ctx context.Context,
	id string,
	status domain.FailedOrderStatus,
) error {
	query := `UPDATE failed_orders SET status = $1 WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, string(status), id, string(domain.FailedOrderPending))
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotPending
	}
	return nil
}

// MarkReprocessed transitions a PENDING record to REPROCESSED with actor and
// time.
func (r *FailedOrderRepo) MarkReprocessed(
	ctx context.Context,
	id, actor string,
	at time.Time,
) error {
	query := `
		UPDATE failed_orders
		SET status = $1, reprocessed_at = $2, reprocessed_by = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(
		ctx,
		query,
		string(domain.FailedOrderReprocessed),
		at,
		actor,
		id,
		string(domain.FailedOrderPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark reprocessed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotPending
	}
	return nil
}

// CountByStatus returns the number of failed orders per status.
func (r *FailedOrderRepo) CountByStatus(
	ctx context.Context,
) (map[domain.FailedOrderStatus]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM failed_orders GROUP BY status`

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[domain.FailedOrderStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.FailedOrderStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// CountByFailureType returns the number of failed orders per failure type.
func (r *FailedOrderRepo) CountByFailureType(
	ctx context.Context,
) (map[domain.FailureType]int, error) {
	query := `SELECT failure_type, COUNT(*) AS count FROM failed_orders GROUP BY failure_type`

	var rows []struct {
		FailureType string `db:"failure_type"`
		Count       int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count by failure type: %w", err)
	}

	counts := make(map[domain.FailureType]int, len(rows))
	for _, row := range rows {
		counts[domain.FailureType(row.FailureType)] = row.Count
	}
	return counts, nil
}
