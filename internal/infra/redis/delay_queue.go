package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/orderflow/internal/stream"
)

// DelayQueue implements stream.DelayQueue on a Redis sorted set, scored by
// due time. Survives process restarts, unlike the in-memory queue.
type DelayQueue struct {
	rdb *redis.Client
	key string
}

// NewDelayQueue creates a Redis-backed delay queue for the given lane set.
func NewDelayQueue(client *Client, name string) *DelayQueue {
	return &DelayQueue{
		rdb: client.rdb,
		key: fmt.Sprintf("retry_lanes:%s", name),
	}
}

// Enqueue parks a deferred message, scored by its due time.
func (q *DelayQueue) Enqueue(ctx context.Context, d stream.Deferred) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal deferred message: %w", err)
	}

	if err := q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(d.Due.UnixMilli()),
		Member: data,
	}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue deferred message: %w", err)
	}
	return nil
}

// PopDue removes and returns up to limit messages due at or before now.
func (q *DelayQueue) PopDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]stream.Deferred, error) {
	if limit <= 0 {
		limit = 100
	}

	members, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore failed: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	due := make([]stream.Deferred, 0, len(members))
	for _, m := range members {
		var d stream.Deferred
		if err := json.Unmarshal([]byte(m), &d); err != nil {
			// Poison entry; drop it from the set so it can't wedge the lane.
			q.rdb.ZRem(ctx, q.key, m)
			continue
		}
		if err := q.rdb.ZRem(ctx, q.key, m).Err(); err != nil {
			return nil, fmt.Errorf("zrem failed: %w", err)
		}
		due = append(due, d)
	}
	return due, nil
}
