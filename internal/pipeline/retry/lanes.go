package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/orderflow/internal/metrics"
	"github.com/vietddude/orderflow/internal/stream"
)

// Lanes routes failed deliveries onto per-attempt retry lanes and replays
// them when their backoff elapses. The pipeline never sleeps through a
// backoff: a deferred message is parked in the delay queue and the Run loop
// re-publishes it as a fresh, independent delivery.
type Lanes struct {
	policy    Policy
	queue     stream.DelayQueue
	publisher stream.Publisher

	pollInterval time.Duration
}

// NewLanes creates the retry lane scheduler.
func NewLanes(policy Policy, queue stream.DelayQueue, publisher stream.Publisher) *Lanes {
	return &Lanes{
		policy:       policy,
		queue:        queue,
		publisher:    publisher,
		pollInterval: 100 * time.Millisecond,
	}
}

// LaneName derives the per-attempt lane from the base topic. The attempt
// index is recoverable from the suffix.
func LaneName(baseTopic string, attempt int) string {
	return fmt.Sprintf("%s-retry-%d", baseTopic, attempt)
}

// Topics lists every lane derived from baseTopic, one per deferrable
// attempt. Consumers that want redeliveries must subscribe to each of them;
// lanes are separate topics so that groups reading only the base topic never
// see a delivery twice.
func (l *Lanes) Topics(baseTopic string) []string {
	names := make([]string, 0, l.policy.MaxAttempts-1)
	for i := 0; i < l.policy.MaxAttempts-1; i++ {
		names = append(names, LaneName(baseTopic, i))
	}
	return names
}

// Defer schedules msg for re-delivery after the backoff for the attempt that
// just failed. The replayed delivery carries attempt+1 and the original
// correlation metadata.
func (l *Lanes) Defer(ctx context.Context, msg *stream.Message, failedAttempt int) error {
	delay := l.policy.Delay(failedAttempt)
	lane := LaneName(msg.OriginTopic(), failedAttempt-1)

	headers := make(map[string]string, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[stream.HeaderAttempt] = fmt.Sprintf("%d", failedAttempt+1)
	headers[stream.HeaderOriginTopic] = msg.OriginTopic()

	d := stream.Deferred{
		Msg: stream.Message{
			Topic:   lane,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: headers,
		},
		Due: time.Now().Add(delay),
	}

	if err := l.queue.Enqueue(ctx, d); err != nil {
		return fmt.Errorf("failed to defer to lane %s: %w", lane, err)
	}

	metrics.RetriesScheduled.WithLabelValues(lane).Inc()
	slog.Info("Retry scheduled",
		"lane", lane,
		"key", msg.Key,
		"attempt", failedAttempt,
		"delay", delay,
	)
	return nil
}

// Run replays due messages onto their retry lane until the context is
// cancelled.
func (l *Lanes) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.replayDue(ctx); err != nil {
				slog.Error("Failed to replay due retries", "error", err)
			}
		}
	}
}

func (l *Lanes) replayDue(ctx context.Context) error {
	due, err := l.queue.PopDue(ctx, time.Now(), 100)
	if err != nil {
		return err
	}

	for _, d := range due {
		// The deferred message already carries its lane topic. Replaying it
		// there keeps redeliveries away from groups that read only the base
		// topic.
		if err := l.publisher.Publish(ctx, d.Msg); err != nil {
			// Put it back; the replay must not drop events.
			if reErr := l.queue.Enqueue(ctx, d); reErr != nil {
				return fmt.Errorf("failed to requeue after publish error: %v (publish: %w)", reErr, err)
			}
			return err
		}
	}
	return nil
}
