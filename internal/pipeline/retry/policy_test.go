package retry

import (
	"testing"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
)

func TestPolicy_DelaySequence(t *testing.T) {
	p := DefaultPolicy()

	// 1s * 5^(n-1), capped at 30s
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 5 * time.Second},
		{3, 25 * time.Second},
		{4, 30 * time.Second}, // 125s capped
		{10, 30 * time.Second},
	}

	for _, c := range cases {
		if got := p.Delay(c.attempt); got != c.want {
			t.Errorf("Delay(%d): expected %v, got %v", c.attempt, c.want, got)
		}
	}
}

func TestPolicy_DelayClampsBadAttempt(t *testing.T) {
	p := DefaultPolicy()
	if got := p.Delay(0); got != 1*time.Second {
		t.Errorf("Delay(0): expected 1s, got %v", got)
	}
}

func TestPolicy_PermanentEscalatesImmediately(t *testing.T) {
	p := DefaultPolicy()

	// Regardless of remaining budget.
	if d := p.Decide(domain.FailurePermanent, 1); d != DecisionDeadLetter {
		t.Error("permanent failure on attempt 1 should dead-letter")
	}
}

func TestPolicy_TemporaryRetriesUntilCeiling(t *testing.T) {
	p := DefaultPolicy() // MaxAttempts = 4

	for attempt := 1; attempt < 4; attempt++ {
		if d := p.Decide(domain.FailureTemporary, attempt); d != DecisionRetry {
			t.Errorf("attempt %d: expected retry", attempt)
		}
	}
	if d := p.Decide(domain.FailureTemporary, 4); d != DecisionDeadLetter {
		t.Error("attempt 4: expected dead-letter (retries exhausted)")
	}
}

func TestLaneName(t *testing.T) {
	if got := LaneName("orders", 0); got != "orders-retry-0" {
		t.Errorf("expected orders-retry-0, got %s", got)
	}
	if got := LaneName("orders", 2); got != "orders-retry-2" {
		t.Errorf("expected orders-retry-2, got %s", got)
	}
}
