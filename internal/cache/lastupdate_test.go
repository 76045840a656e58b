package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flori92/FloDrama-sub001/internal/logger"
)

func newTestTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTracker(client, logger.NewNop()), mr
}

func TestMarkAndReadRoundTrip(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	at := time.Date(2026, time.September, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, tracker.MarkScheduled(ctx, "drama", "voirdrama", at))

	got, ok := tracker.LastScheduled(ctx, "drama", "voirdrama")
	require.True(t, ok)
	assert.True(t, got.Equal(at))
}

func TestLastScheduledUnknownSource(t *testing.T) {
	tracker, _ := newTestTracker(t)

	_, ok := tracker.LastScheduled(context.Background(), "drama", "never-crawled")
	assert.False(t, ok)
}

func TestLastScheduledCorruptTimestamp(t *testing.T) {
	tracker, mr := newTestTracker(t)

	require.NoError(t, mr.Set("flodrama:lastcrawl:drama:voirdrama", "not-a-time"))

	_, ok := tracker.LastScheduled(context.Background(), "drama", "voirdrama")
	assert.False(t, ok)
}

func TestKeysAreScopedPerCategoryAndSource(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, tracker.MarkScheduled(ctx, "drama", "voirdrama", at))

	_, ok := tracker.LastScheduled(ctx, "anime", "voirdrama")
	assert.False(t, ok)
	_, ok = tracker.LastScheduled(ctx, "drama", "other")
	assert.False(t, ok)
}
