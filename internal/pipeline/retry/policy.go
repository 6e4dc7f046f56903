package retry

import (
	"math"
	"time"

	"github.com/vietddude/orderflow/internal/core/domain"
)

// Policy defines the backoff schedule for temporary failures.
type Policy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultPolicy returns the production backoff schedule.
// 1s, 5s, 25s, then dead-letter on the 4th failed attempt.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: 1 * time.Second,
		Multiplier:   5.0,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  4,
	}
}

// Delay returns the backoff before re-delivering attempt+1. Attempt is
// 1-based: Delay(1) follows the original delivery.
// Delay(n) = min(initial * multiplier^(n-1), maxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Decision is the scheduler's verdict for a failed attempt.
type Decision int

const (
	// DecisionRetry schedules a deferred re-delivery.
	DecisionRetry Decision = iota
	// DecisionDeadLetter escalates to the dead-letter sink.
	DecisionDeadLetter
)

// Decide applies the decision rule: permanent failures escalate immediately
// regardless of remaining budget; temporary failures retry until the attempt
// ceiling, then escalate as exhausted.
func (p Policy) Decide(ft domain.FailureType, attempt int) Decision {
	if ft == domain.FailurePermanent {
		return DecisionDeadLetter
	}
	if attempt >= p.MaxAttempts {
		return DecisionDeadLetter
	}
	return DecisionRetry
}
