package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
)

// MemoryStorage backs the repositories when no database is configured.
type MemoryStorage struct {
	orders      map[string]*domain.PersistedOrder // keyed by order_id
	failed      map[string]*domain.FailedOrder    // keyed by surrogate id
	failedOrder []string                          // insertion order of failed ids
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		orders: make(map[string]*domain.PersistedOrder),
		failed: make(map[string]*domain.FailedOrder),
	}
}

// -----------------------------------------------------------------------------
// Order Repository
// -----------------------------------------------------------------------------

type OrderRepo struct {
	store *MemoryStorage
}

func NewOrderRepo(store *MemoryStorage) *OrderRepo {
	return &OrderRepo{store: store}
}

func (r *OrderRepo) Save(ctx context.Context, order *domain.PersistedOrder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.orders[order.OrderID]; exists {
		return storage.ErrDuplicateOrder
	}
	copied := *order
	r.store.orders[order.OrderID] = &copied
	return nil
}

func (r *OrderRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.PersistedOrder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	order, ok := r.store.orders[orderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *OrderRepo) Exists(ctx context.Context, orderID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, ok := r.store.orders[orderID]
	return ok, nil
}

func (r *OrderRepo) List(ctx context.Context, limit int) ([]*domain.PersistedOrder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	orders := make([]*domain.PersistedOrder, 0, len(r.store.orders))
	for _, o := range r.store.orders {
		copied := *o
		orders = append(orders, &copied)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ProcessedAt.After(orders[j].ProcessedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *OrderRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.orders), nil
}

// -----------------------------------------------------------------------------
// Failed Order Repository (dead-letter sink)
// -----------------------------------------------------------------------------

type FailedOrderRepo struct {
	store *MemoryStorage
}

func NewFailedOrderRepo(store *MemoryStorage) *FailedOrderRepo {
	return &FailedOrderRepo{store: store}
}

func (r *FailedOrderRepo) Add(ctx context.Context, fo *domain.FailedOrder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *fo
	if copied.Status == "" {
		copied.Status = domain.FailedOrderPending
	}
	r.store.failed[copied.ID] = &copied
	r.store.failedOrder = append(r.store.failedOrder, copied.ID)
	return nil
}

func (r *FailedOrderRepo) Get(ctx context.Context, id string) (*domain.FailedOrder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	fo, ok := r.store.failed[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *fo
	return &copied, nil
}

func (r *FailedOrderRepo) List(
	ctx context.Context,
	filter storage.FailedOrderFilter,
) ([]*domain.FailedOrder, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.FailedOrder, 0, len(r.store.failedOrder))
	// newest first
	for i := len(r.store.failedOrder) - 1; i >= 0; i-- {
		fo := r.store.failed[r.store.failedOrder[i]]
		if filter.Status != "" && fo.Status != filter.Status {
			continue
		}
		if filter.Category != "" && fo.FailureCategory != filter.Category {
			continue
		}
		copied := *fo
		out = append(out, &copied)
	}
	return out, nil
}

func (r *FailedOrderRepo) SetStatus(
	ctx context.Context,
	id string,
	status domain.FailedOrderStatus,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	fo, ok := r.store.failed[id]
	if !ok {
		return storage.ErrNotFound
	}
	if fo.Status != domain.FailedOrderPending {
		return storage.ErrNotPending
	}
	fo.Status = status
	return nil
}

func (r *FailedOrderRepo) MarkReprocessed(
	ctx context.Context,
	id, actor string,
	at time.Time,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	fo, ok := r.store.failed[id]
	if !ok {
		return storage.ErrNotFound
	}
	if fo.Status != domain.FailedOrderPending {
		return storage.ErrNotPending
	}
	fo.Status = domain.FailedOrderReprocessed
	fo.ReprocessedAt = &at
	fo.ReprocessedBy = actor
	return nil
}

func (r *FailedOrderRepo) CountByStatus(
	ctx context.Context,
) (map[domain.FailedOrderStatus]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.FailedOrderStatus]int)
	for _, fo := range r.store.failed {
		counts[fo.Status]++
	}
	return counts, nil
}

func (r *FailedOrderRepo) CountByFailureType(
	ctx context.Context,
) (map[domain.FailureType]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.FailureType]int)
	for _, fo := range r.store.failed {
		counts[fo.FailureType]++
	}
	return counts, nil
}
