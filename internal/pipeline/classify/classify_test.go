package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/orderflow/internal/core/domain"
	"github.com/vietddude/orderflow/internal/infra/storage"
)

func TestClassify_ProcessingError(t *testing.T) {
	err := NewPermanent(domain.CategoryInvalidPrice, "price must be greater than zero")

	ft, cat := Classify(err)
	if ft != domain.FailurePermanent {
		t.Errorf("expected permanent, got %s", ft)
	}
	if cat != domain.CategoryInvalidPrice {
		t.Errorf("expected INVALID_PRICE, got %s", cat)
	}
}

func TestClassify_WrappedProcessingError(t *testing.T) {
	inner := NewTemporary(domain.CategoryNetworkError, "payment service unreachable")
	wrapped := fmt.Errorf("processing order abc: %w", inner)

	ft, cat := Classify(wrapped)
	if ft != domain.FailureTemporary {
		t.Errorf("expected temporary, got %s", ft)
	}
	if cat != domain.CategoryNetworkError {
		t.Errorf("expected NETWORK_ERROR, got %s", cat)
	}
}

func TestClassify_DuplicateOrderSentinel(t *testing.T) {
	err := fmt.Errorf("saving order: %w", storage.ErrDuplicateOrder)

	ft, cat := Classify(err)
	if ft != domain.FailurePermanent {
		t.Errorf("expected permanent, got %s", ft)
	}
	if cat != domain.CategoryDuplicateOrder {
		t.Errorf("expected DUPLICATE_ORDER, got %s", cat)
	}
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	ft, cat := Classify(context.DeadlineExceeded)
	if ft != domain.FailureTemporary {
		t.Errorf("expected temporary, got %s", ft)
	}
	if cat != domain.CategoryDatabaseTimeout {
		t.Errorf("expected DATABASE_TIMEOUT, got %s", cat)
	}
}

func TestClassify_SubstringFallback(t *testing.T) {
	cases := []struct {
		err  error
		want domain.FailureCategory
	}{
		{errors.New("i/o timeout"), domain.CategoryDatabaseTimeout},
		{errors.New("429 Too Many Requests"), domain.CategoryRateLimitExceeded},
		{errors.New("dial tcp: connection refused"), domain.CategoryNetworkError},
		{errors.New("circuit breaker open"), domain.CategoryCircuitBreakerOpen},
		{errors.New("something unexpected"), domain.CategoryServiceUnavailable},
	}

	for _, c := range cases {
		ft, cat := Classify(c.err)
		if ft != domain.FailureTemporary {
			t.Errorf("%v: expected temporary, got %s", c.err, ft)
		}
		if cat != c.want {
			t.Errorf("%v: expected %s, got %s", c.err, c.want, cat)
		}
	}
}
