package domain

import "time"

// FailureType splits processing errors into the two classes that drive the
// pipeline's control flow: temporary failures are retried, permanent
// failures go straight to the dead-letter sink.
type FailureType string

const (
	FailureTemporary FailureType = "TEMPORARY"
	FailurePermanent FailureType = "PERMANENT"
)

// FailureCategory tags a failure with its cause. The set is extensible;
// these are the categories the processor currently raises.
type FailureCategory string

const (
	// Temporary (retryable)
	CategoryNetworkError       FailureCategory = "NETWORK_ERROR"
	CategoryDatabaseTimeout    FailureCategory = "DATABASE_TIMEOUT"
	CategoryServiceUnavailable FailureCategory = "SERVICE_UNAVAILABLE"
	CategoryRateLimitExceeded  FailureCategory = "RATE_LIMIT_EXCEEDED"
	CategoryCircuitBreakerOpen FailureCategory = "CIRCUIT_BREAKER_OPEN"

	// Permanent (never retried)
	CategoryValidationError       FailureCategory = "VALIDATION_ERROR"
	CategoryBusinessRuleViolation FailureCategory = "BUSINESS_RULE_VIOLATION"
	CategoryDuplicateOrder        FailureCategory = "DUPLICATE_ORDER"
	CategoryInsufficientInventory FailureCategory = "INSUFFICIENT_INVENTORY"
	CategoryInvalidPrice          FailureCategory = "INVALID_PRICE"
	CategoryProductNotFound       FailureCategory = "PRODUCT_NOT_FOUND"
)

// FailedOrder is a dead-lettered order awaiting manual or automated
// disposition.
type FailedOrder struct {
	ID              string            `json:"id"`
	OrderID         string            `json:"order_id"`
	Product         string            `json:"product"`
	Price           float32           `json:"price"`
	FailureType     FailureType       `json:"failure_type"`
	FailureCategory FailureCategory   `json:"failure_category"`
	ErrorMessage    string            `json:"error_message"`
	RetryCount      int               `json:"retry_count"`
	OriginalTopic   string            `json:"original_topic"`
	CorrelationID   string            `json:"correlation_id"`
	FailedAt        time.Time         `json:"failed_at"`
	Status          FailedOrderStatus `json:"status"`
	ReprocessedAt   *time.Time        `json:"reprocessed_at,omitempty"`
	ReprocessedBy   string            `json:"reprocessed_by,omitempty"`
}

// FailedOrderStatus is the dead-letter lifecycle state. Pending is the only
// non-terminal state; Reprocessed and Discarded are terminal.
type FailedOrderStatus string

const (
	FailedOrderPending     FailedOrderStatus = "PENDING"
	FailedOrderReprocessed FailedOrderStatus = "REPROCESSED"
	FailedOrderDiscarded   FailedOrderStatus = "DISCARDED"
)

// Terminal reports whether no further transition is allowed from s.
func (s FailedOrderStatus) Terminal() bool {
	return s == FailedOrderReprocessed || s == FailedOrderDiscarded
}
