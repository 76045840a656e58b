// Package queue implements the durable task queue on Redis.
//
// Layout: one list per priority tier (tasks:p1..p4), a shared processing
// list, a lease hash mapping task ID to its visibility deadline, and a
// dead-letter list. Consumers drain tiers in ascending priority order, so
// delivery is priority-ordered between tiers but FIFO within one; the
// priority field on the payload stays advisory metadata for consumers.
//
// Crash recovery is modeled through leases: a dequeued task stays in the
// processing list until acknowledged, and a reaper returns tasks whose
// lease deadline passed back to their tier. The reaper also sweeps
// processing entries that never got a lease, the leftover of a consumer
// dying between the tier move and the lease write. This is an
// at-least-once contract; handlers must tolerate redelivery.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
)

// ErrEmpty is returned when no task is ready on any tier.
var ErrEmpty = errors.New("queue: no tasks ready")

const keyPrefix = "flodrama:tasks"

// Queue is the Redis-backed task queue.
type Queue struct {
	client  *redis.Client
	logger  logger.Logger
	visible time.Duration
}

// New creates a queue with the given lease visibility timeout.
func New(client *redis.Client, visibility time.Duration, log logger.Logger) *Queue {
	if visibility <= 0 {
		visibility = 10 * time.Minute
	}
	return &Queue{client: client, logger: log, visible: visibility}
}

// Delivery pairs a decoded task with the raw payload needed to settle it.
type Delivery struct {
	Task *domain.ScrapingTask
	raw  string
}

func tierKey(priority int) string {
	return fmt.Sprintf("%s:p%d", keyPrefix, domain.ClampPriority(priority))
}

func processingKey() string { return keyPrefix + ":processing" }
func leaseKey() string      { return keyPrefix + ":leases" }
func payloadKey() string    { return keyPrefix + ":inflight" }
func deadKey() string       { return keyPrefix + ":dead" }

// Enqueue pushes a task onto its priority tier. A missing ID and timestamp
// are filled in.
func (q *Queue) Enqueue(ctx context.Context, task *domain.ScrapingTask) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Timestamp.IsZero() {
		task.Timestamp = time.Now().UTC()
	}
	task.Priority = domain.ClampPriority(task.Priority)

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, tierKey(task.Priority), payload).Err(); err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}

	q.logger.Debug("task enqueued",
		logger.String("task_id", task.ID),
		logger.String("source", task.Source),
		logger.String("kind", string(task.Kind)),
		logger.Int("priority", task.Priority))
	return nil
}

// Dequeue pops the most urgent ready task, moving it to the processing
// list and opening a lease. Returns ErrEmpty when every tier is drained.
func (q *Queue) Dequeue(ctx context.Context) (*Delivery, error) {
	for p := domain.MinPriority; p <= domain.MaxPriorityTier; p++ {
		raw, err := q.client.LMove(ctx, tierKey(p), processingKey(), "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("dequeue tier %d: %w", p, err)
		}

		var task domain.ScrapingTask
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			// Unparseable payloads go straight to the dead-letter list.
			q.logger.Error("dropping malformed task payload", logger.Error(err))
			pipe := q.client.TxPipeline()
			pipe.LRem(ctx, processingKey(), 1, raw)
			pipe.LPush(ctx, deadKey(), raw)
			_, _ = pipe.Exec(ctx)
			continue
		}

		deadline := time.Now().Add(q.visible).Unix()
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, leaseKey(), task.ID, strconv.FormatInt(deadline, 10))
		pipe.HSet(ctx, payloadKey(), task.ID, raw)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("open lease for %s: %w", task.ID, err)
		}

		return &Delivery{Task: &task, raw: raw}, nil
	}
	return nil, ErrEmpty
}

// Ack settles a delivery: the task leaves the processing list and its
// lease is released.
func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, processingKey(), 1, d.raw)
	pipe.HDel(ctx, leaseKey(), d.Task.ID)
	pipe.HDel(ctx, payloadKey(), d.Task.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack task %s: %w", d.Task.ID, err)
	}
	return nil
}

// Fail moves a delivery to the dead-letter list for the reconciler.
func (q *Queue) Fail(ctx context.Context, d *Delivery) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, processingKey(), 1, d.raw)
	pipe.HDel(ctx, leaseKey(), d.Task.ID)
	pipe.HDel(ctx, payloadKey(), d.Task.ID)
	pipe.LPush(ctx, deadKey(), d.raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dead-letter task %s: %w", d.Task.ID, err)
	}
	q.logger.Warn("task dead-lettered",
		logger.String("task_id", d.Task.ID),
		logger.String("source", d.Task.Source))
	return nil
}

// PopDead removes and returns one dead-lettered task, or ErrEmpty.
func (q *Queue) PopDead(ctx context.Context) (*domain.ScrapingTask, error) {
	raw, err := q.client.RPop(ctx, deadKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("pop dead letter: %w", err)
	}

	var task domain.ScrapingTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		q.logger.Error("discarding malformed dead letter", logger.Error(err))
		return nil, &domain.ParseError{URL: deadKey(), Reason: err.Error()}
	}
	return &task, nil
}

// ReapExpired returns tasks whose lease deadline has passed to their
// priority tier for redelivery, along with any in-flight task that has
// no lease at all. Reports how many were requeued.
func (q *Queue) ReapExpired(ctx context.Context) (int, error) {
	leases, err := q.client.HGetAll(ctx, leaseKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("read leases: %w", err)
	}

	now := time.Now().Unix()
	reaped := 0
	for taskID, rawDeadline := range leases {
		deadline, parseErr := strconv.ParseInt(rawDeadline, 10, 64)
		if parseErr == nil && deadline > now {
			continue
		}

		payload, getErr := q.client.HGet(ctx, payloadKey(), taskID).Result()
		if getErr != nil {
			// Lease without payload: drop the orphaned lease entry.
			_ = q.client.HDel(ctx, leaseKey(), taskID).Err()
			continue
		}

		var task domain.ScrapingTask
		tier := domain.MaxPriorityTier
		if json.Unmarshal([]byte(payload), &task) == nil {
			tier = task.Priority
		}

		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, processingKey(), 1, payload)
		pipe.HDel(ctx, leaseKey(), taskID)
		pipe.HDel(ctx, payloadKey(), taskID)
		pipe.LPush(ctx, tierKey(tier), payload)
		if _, execErr := pipe.Exec(ctx); execErr != nil {
			return reaped, fmt.Errorf("reap lease %s: %w", taskID, execErr)
		}
		reaped++

		q.logger.Warn("lease expired, task requeued",
			logger.String("task_id", taskID))
	}

	orphaned, err := q.reapOrphaned(ctx)
	if err != nil {
		return reaped, err
	}
	return reaped + orphaned, nil
}

// reapOrphaned requeues processing-list entries that carry no lease. A
// consumer crashing between the tier move and the lease write leaves
// exactly this state behind. A task caught inside that window on a live
// consumer gets redelivered, which the at-least-once contract covers.
func (q *Queue) reapOrphaned(ctx context.Context) (int, error) {
	entries, err := q.client.LRange(ctx, processingKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("scan processing list: %w", err)
	}

	reaped := 0
	for _, payload := range entries {
		var task domain.ScrapingTask
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			q.logger.Error("dead-lettering malformed in-flight payload", logger.Error(err))
			pipe := q.client.TxPipeline()
			pipe.LRem(ctx, processingKey(), 1, payload)
			pipe.LPush(ctx, deadKey(), payload)
			_, _ = pipe.Exec(ctx)
			continue
		}

		leased, err := q.client.HExists(ctx, leaseKey(), task.ID).Result()
		if err != nil {
			return reaped, fmt.Errorf("check lease for %s: %w", task.ID, err)
		}
		if leased {
			continue
		}

		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, processingKey(), 1, payload)
		pipe.HDel(ctx, payloadKey(), task.ID)
		pipe.LPush(ctx, tierKey(task.Priority), payload)
		if _, execErr := pipe.Exec(ctx); execErr != nil {
			return reaped, fmt.Errorf("requeue orphaned task %s: %w", task.ID, execErr)
		}
		reaped++

		q.logger.Warn("orphaned in-flight task requeued",
			logger.String("task_id", task.ID))
	}
	return reaped, nil
}

// Depth reports visible and in-flight task counts.
func (q *Queue) Depth(ctx context.Context) (visible, inflight int64, err error) {
	for p := domain.MinPriority; p <= domain.MaxPriorityTier; p++ {
		n, lenErr := q.client.LLen(ctx, tierKey(p)).Result()
		if lenErr != nil {
			return 0, 0, fmt.Errorf("tier %d depth: %w", p, lenErr)
		}
		visible += n
	}
	inflight, err = q.client.LLen(ctx, processingKey()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("processing depth: %w", err)
	}
	return visible, inflight, nil
}

// DeadDepth reports the dead-letter backlog.
func (q *Queue) DeadDepth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, deadKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("dead-letter depth: %w", err)
	}
	return n, nil
}
