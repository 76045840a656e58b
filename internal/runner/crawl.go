// Package runner consumes scraping tasks from the queue and executes
// crawl, enrichment and popularity work.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/flori92/FloDrama-sub001/internal/config"
	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
	"github.com/flori92/FloDrama-sub001/internal/scraper"
)

// ContentStore is the datastore slice a crawl run needs.
type ContentStore interface {
	Upsert(ctx context.Context, item *domain.ContentItem) (string, error)
}

// LogStore records run logs.
type LogStore interface {
	Start(ctx context.Context, log *domain.ScrapingLog) error
	Finish(ctx context.Context, log *domain.ScrapingLog) error
}

// SearchIndex mirrors upserted items.
type SearchIndex interface {
	IndexItem(ctx context.Context, item *domain.ContentItem) error
}

// Crawler executes one crawl run per scraping task: discover detail
// URLs, extract each page, upsert and index the results.
type Crawler struct {
	scrapers *scraper.Registry
	content  ContentStore
	logs     LogStore
	index    SearchIndex
	cfg      config.CrawlConfig
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// NewCrawler wires a crawl runner.
func NewCrawler(
	scrapers *scraper.Registry,
	content ContentStore,
	logs LogStore,
	index SearchIndex,
	cfg config.CrawlConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *Crawler {
	return &Crawler{
		scrapers: scrapers,
		content:  content,
		logs:     logs,
		index:    index,
		cfg:      cfg,
		metrics:  m,
		logger:   log,
	}
}

// Run executes one crawl task end to end. The item quota is a soft
// bound in both directions: extraction stops once min_items have been
// upserted, and a run that scrapes fewer finishes with status
// quota_not_met but is still a successful run. Only a failed discovery
// or a broken datastore fails the task.
func (c *Crawler) Run(ctx context.Context, task *domain.ScrapingTask) error {
	runLog := &domain.ScrapingLog{
		Source:         task.Source,
		TargetCategory: task.Category,
	}
	if err := c.logs.Start(ctx, runLog); err != nil {
		return fmt.Errorf("open run log: %w", err)
	}

	err := c.crawl(ctx, task, runLog)
	if err != nil {
		runLog.Success = false
		runLog.Status = domain.RunStatusFailed
		runLog.ErrorMessage = err.Error()
	} else if runLog.ItemsCount < c.cfg.MinItems {
		runLog.Success = true
		runLog.Status = domain.RunStatusQuotaNotMet
	} else {
		runLog.Success = true
		runLog.Status = domain.RunStatusCompleted
	}

	if finishErr := c.logs.Finish(ctx, runLog); finishErr != nil {
		c.logger.Error("finalize run log failed",
			logger.String("log_id", runLog.ID),
			logger.Error(finishErr))
	}

	c.logger.Info("crawl run finished",
		logger.String("source", task.Source),
		logger.String("category", task.Category),
		logger.String("status", runLog.Status),
		logger.Int("items", runLog.ItemsCount),
		logger.Int("errors", runLog.ErrorsCount),
		logger.Float64("duration_seconds", runLog.DurationSecs))
	return err
}

func (c *Crawler) crawl(ctx context.Context, task *domain.ScrapingTask, runLog *domain.ScrapingLog) error {
	s, err := c.scrapers.Get(task.Source)
	if err != nil {
		return err
	}

	urls, err := s.DiscoverURLs(ctx, c.cfg.DiscoverLimit)
	if err != nil {
		return fmt.Errorf("discover urls for %s: %w", task.Source, err)
	}
	c.logger.Info("discovered detail pages",
		logger.String("source", task.Source),
		logger.Int("count", len(urls)))

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := s.ExtractDetails(ctx, url)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			runLog.ErrorsCount++
			c.metrics.ScrapeErrors.WithLabelValues(task.Source, errorClass(err)).Inc()
			c.logger.Warn("detail extraction failed",
				logger.String("url", url),
				logger.Error(err))
			continue
		}

		c.fillFromTask(item, task)
		if _, err := c.content.Upsert(ctx, item); err != nil {
			return fmt.Errorf("upsert %q from %s: %w", item.Title, task.Source, err)
		}
		runLog.ItemsCount++
		c.metrics.ItemsScraped.WithLabelValues(task.Source).Inc()

		if err := c.index.IndexItem(ctx, item); err != nil {
			c.logger.Warn("search index write failed",
				logger.String("id", item.ID),
				logger.Error(err))
		}

		if c.cfg.MinItems > 0 && runLog.ItemsCount >= c.cfg.MinItems {
			c.logger.Info("item quota reached, stopping run early",
				logger.String("source", task.Source),
				logger.Int("items", runLog.ItemsCount))
			break
		}
	}
	return nil
}

// fillFromTask stamps task-level attributes onto an extracted item.
func (c *Crawler) fillFromTask(item *domain.ContentItem, task *domain.ScrapingTask) {
	item.Source = task.Source
	item.Type = domain.ContentType(task.Category)
	if item.Language == "" && len(task.Languages) > 0 {
		item.Language = task.Languages[0]
	}
}

func errorClass(err error) string {
	switch {
	case domain.IsRetryable(err):
		return "network"
	case domain.IsParseError(err):
		return "parse"
	default:
		return "other"
	}
}
