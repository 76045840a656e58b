// Package scheduler decides which (source, category, kind) combinations
// need work and emits tasks onto the durable queue.
//
// Each cycle evaluates four independent policies. The policies run as
// supervised siblings: one failing (a datastore timeout, say) never
// stops the other three, and a whole-cycle failure only delays the next
// attempt, it never terminates the loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flori92/FloDrama-sub001/internal/config"
	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
	"github.com/flori92/FloDrama-sub001/internal/sources"
	"github.com/flori92/FloDrama-sub001/internal/store"
)

// TaskQueue is the slice of the queue the scheduler needs.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *domain.ScrapingTask) error
	PopDead(ctx context.Context) (*domain.ScrapingTask, error)
	ReapExpired(ctx context.Context) (int, error)
	Depth(ctx context.Context) (visible, inflight int64, err error)
}

// FreshnessCache tracks when each source was last scheduled.
type FreshnessCache interface {
	LastScheduled(ctx context.Context, category, source string) (time.Time, bool)
	MarkScheduled(ctx context.Context, category, source string, at time.Time) error
}

// ContentStore is the slice of the datastore the policies query.
type ContentStore interface {
	StaleGroups(ctx context.Context, olderThan time.Duration) ([]store.TaskGroup, error)
	EnrichmentGroups(ctx context.Context, qualityThreshold float64) ([]store.TaskGroup, error)
	PopularityGroups(ctx context.Context, maxAge time.Duration) ([]store.TaskGroup, error)
}

// FailureStore records tasks that exhausted their retry budget.
type FailureStore interface {
	Record(ctx context.Context, task *domain.ScrapingTask) error
}

// Scheduler runs the scheduling loop.
type Scheduler struct {
	registry *sources.Registry
	queue    TaskQueue
	cache    FreshnessCache
	content  ContentStore
	failures FailureStore
	metrics  *metrics.Metrics
	logger   logger.Logger

	cycleInterval    time.Duration
	cycleBackoff     time.Duration
	refreshAfter     time.Duration
	qualityThreshold float64
	popularityMaxAge time.Duration
	backlogWarnSize  int64
}

// New creates a scheduler.
func New(
	registry *sources.Registry,
	taskQueue TaskQueue,
	freshness FreshnessCache,
	content ContentStore,
	failures FailureStore,
	m *metrics.Metrics,
	cfg *config.Config,
	log logger.Logger,
) *Scheduler {
	return &Scheduler{
		registry:         registry,
		queue:            taskQueue,
		cache:            freshness,
		content:          content,
		failures:         failures,
		metrics:          m,
		logger:           log,
		cycleInterval:    cfg.Scheduler.CycleInterval,
		cycleBackoff:     cfg.Scheduler.CycleBackoff,
		refreshAfter:     cfg.Scheduler.RefreshAfter,
		qualityThreshold: cfg.NLP.QualityThreshold,
		popularityMaxAge: cfg.NLP.PopularityMaxAge,
		backlogWarnSize:  cfg.Scheduler.BacklogWarnSize,
	}
}

// Run starts the scheduling loop and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.cycleInterval)
	if _, err := c.AddFunc(spec, func() { s.runCycleWithBackoff(ctx) }); err != nil {
		return fmt.Errorf("register scheduler cadence: %w", err)
	}

	s.logger.Info("scheduler started",
		logger.Duration("cycle_interval", s.cycleInterval))

	// First cycle immediately; cron covers the rest.
	s.runCycleWithBackoff(ctx)

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// runCycleWithBackoff retries one failed cycle after a short delay instead
// of waiting for the next cadence tick.
func (s *Scheduler) runCycleWithBackoff(ctx context.Context) {
	if err := s.RunCycle(ctx); err != nil {
		s.logger.Error("scheduling cycle failed, backing off",
			logger.Error(err),
			logger.Duration("backoff", s.cycleBackoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cycleBackoff):
		}
		if err := s.RunCycle(ctx); err != nil {
			s.logger.Error("scheduling cycle retry failed", logger.Error(err))
		}
	}
}

// RunCycle evaluates every policy once. Policies run concurrently and are
// individually supervised; the returned error joins their failures for the
// caller's log but reflects no short-circuiting.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	started := time.Now()

	policies := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"new_crawls", s.policyNewCrawls},
		{"refresh", s.policyRefresh},
		{"enrichment", s.policyEnrichment},
		{"popularity", s.policyPopularity},
		{"dead_letters", s.ReconcileDeadLetters},
		{"backlog", s.CheckBacklog},
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, p := range policies {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("policy %s panicked: %v", name, r))
					mu.Unlock()
				}
			}()
			if err := fn(ctx); err != nil {
				s.logger.Error("policy failed",
					logger.String("policy", name),
					logger.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("policy %s: %w", name, err))
				mu.Unlock()
			}
		}(p.name, p.fn)
	}
	wg.Wait()

	s.logger.Info("scheduling cycle finished",
		logger.Duration("took", time.Since(started)),
		logger.Int("policy_failures", len(errs)))
	return errors.Join(errs...)
}

// policyNewCrawls emits a scraping task for every source whose update
// interval has elapsed. The freshness cache is stamped when the task is
// enqueued, not when it completes: at-least-once, not exactly-once.
func (s *Scheduler) policyNewCrawls(ctx context.Context) error {
	now := time.Now().UTC()
	var errs []error

	for _, src := range s.registry.All() {
		last, known := s.cache.LastScheduled(ctx, string(src.Category), src.Name)
		interval := time.Duration(src.UpdateIntervalHours) * time.Hour
		if known && now.Sub(last) < interval {
			continue
		}

		task := &domain.ScrapingTask{
			Category:  string(src.Category),
			Source:    src.Name,
			Priority:  src.Priority,
			Languages: src.Languages,
			Kind:      domain.TaskScraping,
		}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			errs = append(errs, fmt.Errorf("enqueue crawl for %s: %w", src.Name, err))
			continue
		}
		s.metrics.TasksEmitted.WithLabelValues(string(domain.TaskScraping)).Inc()

		if err := s.cache.MarkScheduled(ctx, string(src.Category), src.Name, now); err != nil {
			// The task is already on the queue; a failed stamp only means
			// an extra crawl next cycle.
			s.logger.Warn("failed to stamp freshness cache",
				logger.String("source", src.Name),
				logger.Error(err))
		}
	}
	return errors.Join(errs...)
}

// policyRefresh re-crawls groups holding stale or ongoing items.
func (s *Scheduler) policyRefresh(ctx context.Context) error {
	groups, err := s.content.StaleGroups(ctx, s.refreshAfter)
	if err != nil {
		return err
	}
	return s.emitGroupTasks(ctx, groups, domain.TaskUpdate, func(g store.TaskGroup) int {
		if g.Ongoing {
			return domain.PriorityHigh
		}
		return domain.PriorityNormal
	})
}

// policyEnrichment schedules enrichment for groups with low-quality or
// unanalyzed items.
func (s *Scheduler) policyEnrichment(ctx context.Context) error {
	groups, err := s.content.EnrichmentGroups(ctx, s.qualityThreshold)
	if err != nil {
		return err
	}
	return s.emitGroupTasks(ctx, groups, domain.TaskEnrichment, func(store.TaskGroup) int {
		return domain.PriorityNormal
	})
}

// policyPopularity schedules popularity re-scoring for groups with missing
// or stale scores.
func (s *Scheduler) policyPopularity(ctx context.Context) error {
	groups, err := s.content.PopularityGroups(ctx, s.popularityMaxAge)
	if err != nil {
		return err
	}
	return s.emitGroupTasks(ctx, groups, domain.TaskPopularityUpdate, func(store.TaskGroup) int {
		return domain.PriorityLow
	})
}

func (s *Scheduler) emitGroupTasks(
	ctx context.Context,
	groups []store.TaskGroup,
	kind domain.TaskKind,
	priority func(store.TaskGroup) int,
) error {
	var errs []error
	for _, g := range groups {
		languages := []string(nil)
		if src, err := s.registry.Get(g.Source); err == nil {
			languages = src.Languages
		}
		task := &domain.ScrapingTask{
			Category:  g.Category,
			Source:    g.Source,
			Priority:  priority(g),
			Languages: languages,
			Kind:      kind,
		}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s for %s: %w", kind, g.Source, err))
			continue
		}
		s.metrics.TasksEmitted.WithLabelValues(string(kind)).Inc()
	}
	return errors.Join(errs...)
}
