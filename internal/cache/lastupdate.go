// Package cache tracks per-source crawl freshness in Redis so the
// scheduler can decide cheaply which sources are due.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flori92/FloDrama-sub001/internal/logger"
)

// Tracker stores the last-scheduled timestamp per (category, source).
// The timestamp is written when a crawl task is enqueued, not when it
// completes, so scheduling stays at-least-once.
type Tracker struct {
	client *redis.Client
	logger logger.Logger
}

// NewTracker creates a last-update tracker.
func NewTracker(client *redis.Client, log logger.Logger) *Tracker {
	return &Tracker{client: client, logger: log}
}

func (t *Tracker) key(category, source string) string {
	return fmt.Sprintf("flodrama:lastcrawl:%s:%s", category, source)
}

// LastScheduled returns when the source was last scheduled for a crawl.
// The second return is false when no record exists or Redis failed; the
// caller treats both as "due now".
func (t *Tracker) LastScheduled(ctx context.Context, category, source string) (time.Time, bool) {
	raw, err := t.client.Get(ctx, t.key(category, source)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false
	}
	if err != nil {
		t.logger.Error("last-update cache read failed",
			logger.String("source", source),
			logger.Error(err))
		return time.Time{}, false
	}

	ts, parseErr := time.Parse(time.RFC3339, raw)
	if parseErr != nil {
		return time.Time{}, false
	}
	return ts, true
}

// MarkScheduled records that a crawl task was just enqueued for the source.
func (t *Tracker) MarkScheduled(ctx context.Context, category, source string, at time.Time) error {
	if err := t.client.Set(ctx, t.key(category, source), at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("mark %s/%s scheduled: %w", category, source, err)
	}
	return nil
}
