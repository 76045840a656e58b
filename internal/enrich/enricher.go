package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/flori92/FloDrama-sub001/internal/config"
	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
)

// batchLimit bounds how many items one enrichment task processes; the
// scheduler re-emits a task next cycle if more remain.
const batchLimit = 100

// ContentStore is the datastore slice the enricher needs.
type ContentStore interface {
	ItemsNeedingEnrichment(ctx context.Context, source string, category domain.ContentType, qualityThreshold float64, limit int) ([]*domain.ContentItem, error)
	ItemsNeedingPopularity(ctx context.Context, source string, category domain.ContentType, maxAge time.Duration, limit int) ([]*domain.ContentItem, error)
	UpdateEnrichment(ctx context.Context, item *domain.ContentItem) error
	UpdatePopularity(ctx context.Context, id string, score float64) error
}

// SearchIndex is the search mirror slice the enricher needs.
type SearchIndex interface {
	IndexItem(ctx context.Context, item *domain.ContentItem) error
	SimilarContent(ctx context.Context, item *domain.ContentItem, size int) ([]string, error)
}

// Enricher runs enrichment and popularity tasks against batches of
// items from one (source, category) group.
type Enricher struct {
	store       ContentStore
	nlp         *NLPClient
	categorizer *Categorizer
	index       SearchIndex
	personal    *PersonalizationClient
	cfg         config.NLPConfig
	metrics     *metrics.Metrics
	logger      logger.Logger
}

// NewEnricher wires the enrichment pipeline.
func NewEnricher(
	store ContentStore,
	nlp *NLPClient,
	categorizer *Categorizer,
	index SearchIndex,
	personal *PersonalizationClient,
	cfg config.NLPConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *Enricher {
	return &Enricher{
		store:       store,
		nlp:         nlp,
		categorizer: categorizer,
		index:       index,
		personal:    personal,
		cfg:         cfg,
		metrics:     m,
		logger:      log,
	}
}

// EnrichGroup enriches up to batchLimit items from one group that are
// below the quality threshold or missing sentiment/entity data.
func (e *Enricher) EnrichGroup(ctx context.Context, source string, category domain.ContentType) (int, error) {
	items, err := e.store.ItemsNeedingEnrichment(ctx, source, category, e.cfg.QualityThreshold, batchLimit)
	if err != nil {
		return 0, fmt.Errorf("load enrichment batch %s/%s: %w", source, category, err)
	}

	enriched := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return enriched, err
		}
		if err := e.enrichItem(ctx, item); err != nil {
			e.logger.Error("enrichment failed",
				logger.String("id", item.ID),
				logger.String("title", item.Title),
				logger.Error(err))
			continue
		}
		enriched++
		e.metrics.Enrichments.Inc()
	}

	e.logger.Info("enrichment batch finished",
		logger.String("source", source),
		logger.String("category", string(category)),
		logger.Int("candidates", len(items)),
		logger.Int("enriched", enriched))
	return enriched, nil
}

// enrichItem recomputes everything derived for one item. An NLP service
// failure degrades to local-only enrichment rather than failing the
// item: quality and categories never depend on the external service.
func (e *Enricher) enrichItem(ctx context.Context, item *domain.ContentItem) error {
	analysis, err := e.nlp.Analyze(ctx, item.Title, item.Synopsis)
	if err != nil {
		e.logger.Warn("nlp analysis unavailable",
			logger.String("id", item.ID),
			logger.Error(err))
	} else {
		item.Sentiment = analysis.Sentiment
		item.Entities = analysis.Entities
	}

	item.QualityScore = QualityScore(item)
	e.categorizer.Categorize(item)

	related, err := e.index.SimilarContent(ctx, item, e.cfg.SimilarResultSize)
	if err != nil {
		e.logger.Warn("similar-content lookup failed",
			logger.String("id", item.ID),
			logger.Error(err))
	} else if len(related) > 0 {
		item.RelatedContent = related
	}

	if err := e.store.UpdateEnrichment(ctx, item); err != nil {
		return fmt.Errorf("persist enrichment: %w", err)
	}
	if err := e.index.IndexItem(ctx, item); err != nil {
		e.logger.Warn("search index refresh failed",
			logger.String("id", item.ID),
			logger.Error(err))
	}
	if e.personal.Enabled() {
		if err := e.personal.Push(ctx, item); err != nil {
			e.logger.Warn("personalization push failed", logger.Error(err))
		}
	}
	return nil
}

// UpdatePopularityGroup recomputes popularity for up to batchLimit
// items from one group whose score is missing or stale.
func (e *Enricher) UpdatePopularityGroup(ctx context.Context, source string, category domain.ContentType) (int, error) {
	items, err := e.store.ItemsNeedingPopularity(ctx, source, category, e.cfg.PopularityMaxAge, batchLimit)
	if err != nil {
		return 0, fmt.Errorf("load popularity batch %s/%s: %w", source, category, err)
	}

	now := time.Now().UTC()
	updated := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		score := PopularityScore(item, now)
		if err := e.store.UpdatePopularity(ctx, item.ID, score); err != nil {
			e.logger.Error("popularity update failed",
				logger.String("id", item.ID),
				logger.Error(err))
			continue
		}
		item.PopularityScore = score
		if err := e.index.IndexItem(ctx, item); err != nil {
			e.logger.Warn("search index refresh failed",
				logger.String("id", item.ID),
				logger.Error(err))
		}
		updated++
	}

	e.logger.Info("popularity batch finished",
		logger.String("source", source),
		logger.String("category", string(category)),
		logger.Int("updated", updated))
	return updated, nil
}
