package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flori92/FloDrama-sub001/internal/config"
	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
	"github.com/flori92/FloDrama-sub001/internal/queue"
	"github.com/flori92/FloDrama-sub001/internal/sources"
	"github.com/flori92/FloDrama-sub001/internal/store"
)

type fakeQueue struct {
	enqueued []*domain.ScrapingTask
	dead     []*domain.ScrapingTask
	visible  int64
	inflight int64
	reaped   int
}

func (f *fakeQueue) Enqueue(_ context.Context, task *domain.ScrapingTask) error {
	f.enqueued = append(f.enqueued, task)
	return nil
}

func (f *fakeQueue) PopDead(_ context.Context) (*domain.ScrapingTask, error) {
	if len(f.dead) == 0 {
		return nil, queue.ErrEmpty
	}
	task := f.dead[0]
	f.dead = f.dead[1:]
	return task, nil
}

func (f *fakeQueue) ReapExpired(_ context.Context) (int, error) { return f.reaped, nil }

func (f *fakeQueue) Depth(_ context.Context) (int64, int64, error) {
	return f.visible, f.inflight, nil
}

type fakeCache struct {
	stamps map[string]time.Time
	marked []string
}

func cacheKey(category, source string) string { return category + ":" + source }

func (f *fakeCache) LastScheduled(_ context.Context, category, source string) (time.Time, bool) {
	at, ok := f.stamps[cacheKey(category, source)]
	return at, ok
}

func (f *fakeCache) MarkScheduled(_ context.Context, category, source string, at time.Time) error {
	if f.stamps == nil {
		f.stamps = make(map[string]time.Time)
	}
	f.stamps[cacheKey(category, source)] = at
	f.marked = append(f.marked, cacheKey(category, source))
	return nil
}

type fakeGroups struct {
	stale      []store.TaskGroup
	enrichment []store.TaskGroup
	popularity []store.TaskGroup
}

func (f *fakeGroups) StaleGroups(_ context.Context, _ time.Duration) ([]store.TaskGroup, error) {
	return f.stale, nil
}

func (f *fakeGroups) EnrichmentGroups(_ context.Context, _ float64) ([]store.TaskGroup, error) {
	return f.enrichment, nil
}

func (f *fakeGroups) PopularityGroups(_ context.Context, _ time.Duration) ([]store.TaskGroup, error) {
	return f.popularity, nil
}

type fakeFailures struct {
	recorded []*domain.ScrapingTask
	err      error
}

func (f *fakeFailures) Record(_ context.Context, task *domain.ScrapingTask) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, task)
	return nil
}

func testRegistry(t *testing.T) *sources.Registry {
	t.Helper()
	reg, err := sources.New([]*sources.SourceConfig{
		{
			Name:                "voirdrama",
			BaseURL:             "https://voirdrama.example",
			Category:            domain.TypeDrama,
			Priority:            domain.PriorityUrgent,
			UpdateIntervalHours: 6,
			Languages:           []string{"ko"},
		},
	})
	require.NoError(t, err)
	return reg
}

func newTestScheduler(t *testing.T, q *fakeQueue, c *fakeCache, g *fakeGroups, f *fakeFailures) *Scheduler {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	return New(testRegistry(t), q, c, g, f,
		metrics.New(prometheus.NewRegistry()), cfg, logger.NewNop())
}

func TestNewCrawlPolicyEmitsWhenIntervalElapsed(t *testing.T) {
	q := &fakeQueue{}
	c := &fakeCache{stamps: map[string]time.Time{
		cacheKey("drama", "voirdrama"): time.Now().UTC().Add(-7 * time.Hour),
	}}
	s := newTestScheduler(t, q, c, &fakeGroups{}, &fakeFailures{})

	require.NoError(t, s.policyNewCrawls(context.Background()))

	require.Len(t, q.enqueued, 1)
	task := q.enqueued[0]
	assert.Equal(t, domain.TaskScraping, task.Kind)
	assert.Equal(t, "voirdrama", task.Source)
	assert.Equal(t, "drama", task.Category)
	assert.Equal(t, domain.PriorityUrgent, task.Priority)
	assert.Equal(t, []string{"ko"}, task.Languages)

	// The freshness cache is stamped at enqueue time.
	assert.Equal(t, []string{"drama:voirdrama"}, c.marked)
}

func TestNewCrawlPolicySkipsFreshSource(t *testing.T) {
	q := &fakeQueue{}
	c := &fakeCache{stamps: map[string]time.Time{
		cacheKey("drama", "voirdrama"): time.Now().UTC().Add(-5 * time.Hour),
	}}
	s := newTestScheduler(t, q, c, &fakeGroups{}, &fakeFailures{})

	require.NoError(t, s.policyNewCrawls(context.Background()))
	assert.Empty(t, q.enqueued)
	assert.Empty(t, c.marked)
}

func TestNewCrawlPolicyEmitsWhenNeverScheduled(t *testing.T) {
	q := &fakeQueue{}
	s := newTestScheduler(t, q, &fakeCache{}, &fakeGroups{}, &fakeFailures{})

	require.NoError(t, s.policyNewCrawls(context.Background()))
	require.Len(t, q.enqueued, 1)
}

func TestRefreshPolicyPrioritizesOngoingGroups(t *testing.T) {
	q := &fakeQueue{}
	g := &fakeGroups{stale: []store.TaskGroup{
		{Source: "voirdrama", Category: "drama", Ongoing: true, Count: 12},
		{Source: "filmcomplet", Category: "film", Ongoing: false, Count: 3},
	}}
	s := newTestScheduler(t, q, &fakeCache{}, g, &fakeFailures{})

	require.NoError(t, s.policyRefresh(context.Background()))

	require.Len(t, q.enqueued, 2)
	assert.Equal(t, domain.TaskUpdate, q.enqueued[0].Kind)
	assert.Equal(t, domain.PriorityHigh, q.enqueued[0].Priority)
	assert.Equal(t, domain.PriorityNormal, q.enqueued[1].Priority)
	// Languages come from the registry when the source is known.
	assert.Equal(t, []string{"ko"}, q.enqueued[0].Languages)
	assert.Nil(t, q.enqueued[1].Languages)
}

func TestEnrichmentPolicyEmitsNormalPriority(t *testing.T) {
	q := &fakeQueue{}
	g := &fakeGroups{enrichment: []store.TaskGroup{
		{Source: "voirdrama", Category: "drama", Count: 40},
	}}
	s := newTestScheduler(t, q, &fakeCache{}, g, &fakeFailures{})

	require.NoError(t, s.policyEnrichment(context.Background()))
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, domain.TaskEnrichment, q.enqueued[0].Kind)
	assert.Equal(t, domain.PriorityNormal, q.enqueued[0].Priority)
}

func TestPopularityPolicyEmitsLowPriority(t *testing.T) {
	q := &fakeQueue{}
	g := &fakeGroups{popularity: []store.TaskGroup{
		{Source: "voirdrama", Category: "drama", Count: 200},
	}}
	s := newTestScheduler(t, q, &fakeCache{}, g, &fakeFailures{})

	require.NoError(t, s.policyPopularity(context.Background()))
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, domain.TaskPopularityUpdate, q.enqueued[0].Kind)
	assert.Equal(t, domain.PriorityLow, q.enqueued[0].Priority)
}

func TestReconcileRequeuesTasksInsideRetryBudget(t *testing.T) {
	q := &fakeQueue{dead: []*domain.ScrapingTask{
		{ID: "t1", Source: "voirdrama", Category: "drama", Kind: domain.TaskScraping, RetryCount: 0},
	}}
	f := &fakeFailures{}
	s := newTestScheduler(t, q, &fakeCache{}, &fakeGroups{}, f)

	require.NoError(t, s.ReconcileDeadLetters(context.Background()))

	require.Len(t, q.enqueued, 1)
	assert.Equal(t, 1, q.enqueued[0].RetryCount)
	assert.Empty(t, f.recorded)
}

func TestReconcileRecordsPermanentFailureBeyondBudget(t *testing.T) {
	q := &fakeQueue{dead: []*domain.ScrapingTask{
		{ID: "t1", Source: "voirdrama", Category: "drama", Kind: domain.TaskScraping, RetryCount: domain.MaxTaskRetries},
	}}
	f := &fakeFailures{}
	s := newTestScheduler(t, q, &fakeCache{}, &fakeGroups{}, f)

	require.NoError(t, s.ReconcileDeadLetters(context.Background()))

	assert.Empty(t, q.enqueued)
	require.Len(t, f.recorded, 1)
	assert.Equal(t, domain.MaxTaskRetries+1, f.recorded[0].RetryCount)
}

func TestReconcileSurfacesFailureStoreErrors(t *testing.T) {
	q := &fakeQueue{dead: []*domain.ScrapingTask{
		{ID: "t1", RetryCount: domain.MaxTaskRetries},
	}}
	f := &fakeFailures{err: errors.New("insert failed")}
	s := newTestScheduler(t, q, &fakeCache{}, &fakeGroups{}, f)

	err := s.ReconcileDeadLetters(context.Background())
	assert.ErrorContains(t, err, "insert failed")
}

func TestRunCycleAggregatesAllPolicies(t *testing.T) {
	q := &fakeQueue{
		dead: []*domain.ScrapingTask{
			{ID: "d1", Source: "voirdrama", RetryCount: 0},
		},
	}
	g := &fakeGroups{
		stale:      []store.TaskGroup{{Source: "voirdrama", Category: "drama"}},
		enrichment: []store.TaskGroup{{Source: "voirdrama", Category: "drama"}},
		popularity: []store.TaskGroup{{Source: "voirdrama", Category: "drama"}},
	}
	s := newTestScheduler(t, q, &fakeCache{}, g, &fakeFailures{})

	require.NoError(t, s.RunCycle(context.Background()))

	// One new crawl, one refresh, one enrichment, one popularity update
	// and one requeued dead letter.
	assert.Len(t, q.enqueued, 5)
}
