// internal/engine/scheduler/queue.go
package scheduler

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/models"
)

const (
	batchQueueKey   = "notifications:queue:batched"
	delayedQueueKey = "notifications:queue:delayed"
	digestLastRunKey = "notifications:digest:last_run:"
)

// Item is a queued dispatch unit. The channel list is the routing decision
// made at submit time; it is re-validated against preferences at release.
type Item struct {
	NotificationID string           `json:"notificationId"`
	Channels       []models.Channel `json:"channels"`
}

// Queue holds the BATCHED list and the DELAYED sorted set in redis. Delayed
// members are scored by their release instant in unix seconds.
type Queue struct {
	rdb    *redis.Client
	logger logger.Logger
}

func NewQueue(rdb *redis.Client, log logger.Logger) *Queue {
	return &Queue{rdb: rdb, logger: log}
}

// EnqueueBatch appends an item to the batch queue for the next flush.
func (q *Queue) EnqueueBatch(ctx context.Context, item Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return errors.NewSchedulingError("marshal batch item", err)
	}
	if err := q.rdb.RPush(ctx, batchQueueKey, payload).Err(); err != nil {
		return errors.NewSchedulingError("enqueue batch item", err)
	}
	return nil
}

// DrainBatch removes and returns every currently queued batch item.
func (q *Queue) DrainBatch(ctx context.Context) ([]Item, error) {
	var items []Item
	for {
		payload, err := q.rdb.LPop(ctx, batchQueueKey).Bytes()
		if err == redis.Nil {
			return items, nil
		}
		if err != nil {
			return items, errors.NewSchedulingError("drain batch queue", err)
		}
		var item Item
		if err := json.Unmarshal(payload, &item); err != nil {
			q.logger.Error("discarding malformed batch item", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		items = append(items, item)
	}
}

// ScheduleDelayed adds an item to the delayed set, released at releaseAt.
func (q *Queue) ScheduleDelayed(ctx context.Context, item Item, releaseAt time.Time) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return errors.NewSchedulingError("marshal delayed item", err)
	}
	err = q.rdb.ZAdd(ctx, delayedQueueKey, redis.Z{
		Score:  float64(releaseAt.Unix()),
		Member: payload,
	}).Err()
	if err != nil {
		return errors.NewSchedulingError("schedule delayed item", err)
	}
	return nil
}

// DueDelayed removes and returns every delayed item whose release instant has
// passed. Items are claimed with ZRem so concurrent pollers never release the
// same item twice.
func (q *Queue) DueDelayed(ctx context.Context, now time.Time) ([]Item, error) {
	members, err := q.rdb.ZRangeByScore(ctx, delayedQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, errors.NewSchedulingError("query delayed queue", err)
	}

	var items []Item
	for _, member := range members {
		removed, err := q.rdb.ZRem(ctx, delayedQueueKey, member).Result()
		if err != nil {
			return items, errors.NewSchedulingError("claim delayed item", err)
		}
		if removed == 0 {
			// Another poller claimed it first.
			continue
		}
		var item Item
		if err := json.Unmarshal([]byte(member), &item); err != nil {
			q.logger.Error("discarding malformed delayed item", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// LastDigestRun returns the recorded end of the previous digest window for a
// cadence, or zero time when no digest has run yet.
func (q *Queue) LastDigestRun(ctx context.Context, cadence string) (time.Time, error) {
	raw, err := q.rdb.Get(ctx, digestLastRunKey+cadence).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.NewSchedulingError("read digest watermark", err)
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, errors.NewSchedulingError("parse digest watermark", err)
	}
	return time.Unix(unix, 0).UTC(), nil
}

// SetLastDigestRun advances the digest watermark for a cadence.
func (q *Queue) SetLastDigestRun(ctx context.Context, cadence string, t time.Time) error {
	err := q.rdb.Set(ctx, digestLastRunKey+cadence, strconv.FormatInt(t.Unix(), 10), 0).Err()
	if err != nil {
		return errors.NewSchedulingError("write digest watermark", err)
	}
	return nil
}

// ReportDepths publishes queue depth gauges.
func (q *Queue) ReportDepths(ctx context.Context) {
	if depth, err := q.rdb.LLen(ctx, batchQueueKey).Result(); err == nil {
		metrics.SchedulerQueueDepth.WithLabelValues("batched").Set(float64(depth))
	}
	if depth, err := q.rdb.ZCard(ctx, delayedQueueKey).Result(); err == nil {
		metrics.SchedulerQueueDepth.WithLabelValues("delayed").Set(float64(depth))
	}
}
