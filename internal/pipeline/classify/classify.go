package classify

import (
	"context"
	"errors"
	"strings"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
)

// ProcessingError is a classified processing failure. Its Type is the single
// branch point for the pipeline: temporary errors are retried, permanent
// errors go straight to the dead-letter sink.
type ProcessingError struct {
	Type     domain.FailureType
	Category domain.FailureCategory
	Message  string
	Err      error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return string(e.Category) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Category) + ": " + e.Message
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewTemporary creates a retryable failure.
func NewTemporary(category domain.FailureCategory, message string) *ProcessingError {
	return &ProcessingError{
		Type:     domain.FailureTemporary,
		Category: category,
		Message:  message,
	}
}

// NewPermanent creates a failure that will never succeed on retry.
func NewPermanent(category domain.FailureCategory, message string) *ProcessingError {
	return &ProcessingError{
		Type:     domain.FailurePermanent,
		Category: category,
		Message:  message,
	}
}

// Wrap attaches a cause to a classified failure.
func Wrap(
	t domain.FailureType,
	category domain.FailureCategory,
	message string,
	err error,
) *ProcessingError {
	return &ProcessingError{Type: t, Category: category, Message: message, Err: err}
}

// Classify determines the failure type and category for an error. Pure, no
// I/O. Unclassified errors are treated as temporary infrastructure faults:
// they flow through the retry path rather than being dropped.
func Classify(err error) (domain.FailureType, domain.FailureCategory) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Type, pe.Category
	}

	if errors.Is(err, storage.ErrDuplicateOrder) {
		return domain.FailurePermanent, domain.CategoryDuplicateOrder
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTemporary, domain.CategoryDatabaseTimeout
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline"):
		return domain.FailureTemporary, domain.CategoryDatabaseTimeout
	case strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests"):
		return domain.FailureTemporary, domain.CategoryRateLimitExceeded
	case strings.Contains(s, "connection refused") || strings.Contains(s, "network"):
		return domain.FailureTemporary, domain.CategoryNetworkError
	case strings.Contains(s, "circuit breaker"):
		return domain.FailureTemporary, domain.CategoryCircuitBreakerOpen
	}

	return domain.FailureTemporary, domain.CategoryServiceUnavailable
}
