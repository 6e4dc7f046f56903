package processor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
	"github.com/vietddude/orderflow/internal/pipeline/classify"
)

// Config holds validation settings.
type Config struct {
	MaxPrice     float32
	CheckTimeout time.Duration
}

// Processor runs the per-order checks: validation, business rules, then
// external dependencies. Checks run in that order so an order that can never
// succeed is rejected before any retryable condition is evaluated.
type Processor struct {
	cfg    Config
	orders storage.OrderRepository

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a processor. rng drives the simulated flaky external call and
// may be nil in production.
func New(cfg Config, orders storage.OrderRepository, rng *rand.Rand) *Processor {
	if cfg.MaxPrice == 0 {
		cfg.MaxPrice = 10000
	}
	if cfg.CheckTimeout == 0 {
		cfg.CheckTimeout = 2 * time.Second
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Processor{cfg: cfg, orders: orders, rng: rng}
}

// Process runs all checks for one order. The returned error, if any, is a
// *classify.ProcessingError.
func (p *Processor) Process(ctx context.Context, order domain.Order, correlationID string) error {
	if err := p.validate(order); err != nil {
		return err
	}
	if err := p.checkBusinessRules(ctx, order); err != nil {
		return err
	}
	if err := p.callExternalServices(ctx, order); err != nil {
		return err
	}

	slog.Debug("Order checks passed",
		"cid", correlationID,
		"order_id", order.OrderID,
		"product", order.Product,
		"price", order.Price,
	)
	return nil
}

// validate performs pure input validation. First failing check wins.
func (p *Processor) validate(order domain.Order) error {
	if order.Price <= 0 {
		return classify.NewPermanent(
			domain.CategoryInvalidPrice,
			fmt.Sprintf("price must be greater than zero: %v", order.Price),
		)
	}
	if order.Price > p.cfg.MaxPrice {
		return classify.NewPermanent(
			domain.CategoryValidationError,
			fmt.Sprintf("price exceeds maximum allowed: $%v", order.Price),
		)
	}
	if strings.TrimSpace(order.Product) == "" {
		return classify.NewPermanent(
			domain.CategoryValidationError,
			"product name cannot be empty",
		)
	}
	// Demo hook: order ids ending in 88 fail validation.
	if strings.HasSuffix(order.OrderID, "88") {
		return classify.NewPermanent(
			domain.CategoryValidationError,
			"invalid order format: "+order.OrderID,
		)
	}
	return nil
}

// checkBusinessRules verifies catalog, inventory and duplicate conditions.
// All failures here are permanent.
func (p *Processor) checkBusinessRules(ctx context.Context, order domain.Order) error {
	checkCtx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
	defer cancel()

	exists, err := p.orders.Exists(checkCtx, order.OrderID)
	if err != nil {
		return classify.Wrap(
			domain.FailureTemporary,
			domain.CategoryDatabaseTimeout,
			"duplicate check failed",
			err,
		)
	}
	if exists || strings.HasSuffix(order.OrderID, "77") {
		return classify.NewPermanent(
			domain.CategoryDuplicateOrder,
			"order already exists: "+order.OrderID,
		)
	}

	if strings.HasSuffix(order.OrderID, "66") {
		return classify.NewPermanent(
			domain.CategoryProductNotFound,
			"product not found in catalog: "+order.Product,
		)
	}
	if strings.HasSuffix(order.OrderID, "55") {
		return classify.NewPermanent(
			domain.CategoryInsufficientInventory,
			"insufficient inventory for product: "+order.Product,
		)
	}
	return nil
}

// callExternalServices simulates the downstream payment/inventory calls.
// This is the only source of temporary failures.
func (p *Processor) callExternalServices(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return classify.Wrap(
			domain.FailureTemporary,
			domain.CategoryNetworkError,
			"external call cancelled",
			err,
		)
	}

	switch {
	case strings.HasSuffix(order.OrderID, "99"):
		return classify.NewTemporary(
			domain.CategoryNetworkError,
			"network timeout while calling payment service",
		)
	case strings.HasSuffix(order.OrderID, "98"):
		return classify.NewTemporary(
			domain.CategoryDatabaseTimeout,
			"database connection timeout - retry will likely succeed",
		)
	case strings.HasSuffix(order.OrderID, "97"):
		return classify.NewTemporary(
			domain.CategoryServiceUnavailable,
			"inventory service returned 503",
		)
	case strings.HasSuffix(order.OrderID, "96"):
		return classify.NewTemporary(
			domain.CategoryRateLimitExceeded,
			"rate limit exceeded - backing off",
		)
	case strings.HasSuffix(order.OrderID, "95"):
		p.mu.Lock()
		flaky := p.rng.Intn(10) < 3
		p.mu.Unlock()
		if flaky {
			return classify.NewTemporary(
				domain.CategoryServiceUnavailable,
				"random transient failure - will likely succeed on retry",
			)
		}
	}
	return nil
}
