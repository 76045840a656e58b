package dedup

import (
	"context"
	"fmt"

	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
)

// similarityThreshold is the minimum title (or original-title) similarity
// for a year-compatible pair to count as a duplicate candidate.
const similarityThreshold = 0.85

// ContentStore is the datastore slice the engine needs.
type ContentStore interface {
	ListByCategory(ctx context.Context, category domain.ContentType) ([]*domain.ContentItem, error)
	UpdateMerged(ctx context.Context, item *domain.ContentItem) error
	Delete(ctx context.Context, id string) error
}

// Report summarizes one deduplication pass. Pairs are audit output only;
// nothing here is persisted.
type Report struct {
	Category domain.ContentType
	Compared int
	Pairs    []domain.DuplicatePair
	Merged   int
}

// Engine merges cross-source near-duplicates within a catalog.
//
// The scan is pairwise per source pair, O(n*m) comparisons. That is fine
// at catalog sizes in the tens of thousands; beyond that, block by year or
// normalized title prefix before comparing.
type Engine struct {
	store   ContentStore
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewEngine creates a deduplication engine.
func NewEngine(store ContentStore, m *metrics.Metrics, log logger.Logger) *Engine {
	return &Engine{store: store, metrics: m, logger: log}
}

// Run deduplicates one catalog. Items from the same source are never
// compared: a single source is assumed internally unique.
func (e *Engine) Run(ctx context.Context, category domain.ContentType) (*Report, error) {
	items, err := e.store.ListByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load category %s: %w", category, err)
	}

	bySource := make(map[string][]*domain.ContentItem)
	var sourceOrder []string
	for _, item := range items {
		if _, seen := bySource[item.Source]; !seen {
			sourceOrder = append(sourceOrder, item.Source)
		}
		bySource[item.Source] = append(bySource[item.Source], item)
	}

	report := &Report{Category: category}
	deleted := make(map[string]bool)

	for i := 0; i < len(sourceOrder); i++ {
		for j := i + 1; j < len(sourceOrder); j++ {
			e.scanPair(ctx, bySource[sourceOrder[i]], bySource[sourceOrder[j]], deleted, report)
		}
	}

	e.logger.Info("deduplication pass finished",
		logger.String("category", string(category)),
		logger.Int("items", len(items)),
		logger.Int("compared", report.Compared),
		logger.Int("candidates", len(report.Pairs)),
		logger.Int("merged", report.Merged))
	return report, nil
}

func (e *Engine) scanPair(
	ctx context.Context,
	left, right []*domain.ContentItem,
	deleted map[string]bool,
	report *Report,
) {
	for _, a := range left {
		if deleted[a.ID] {
			continue
		}
		for _, b := range right {
			if deleted[a.ID] {
				break
			}
			if deleted[b.ID] {
				continue
			}
			report.Compared++

			if !yearCompatible(a.Year, b.Year) {
				continue
			}
			titleSim := Ratio(a.Title, b.Title)
			origSim := Ratio(a.OriginalTitle, b.OriginalTitle)
			if titleSim <= similarityThreshold && origSim <= similarityThreshold {
				continue
			}

			report.Pairs = append(report.Pairs, domain.DuplicatePair{
				ID1:                     a.ID,
				ID2:                     b.ID,
				TitleSimilarity:         titleSim,
				OriginalTitleSimilarity: origSim,
				Source1:                 a.Source,
				Source2:                 b.Source,
				Year1:                   a.Year,
				Year2:                   b.Year,
			})

			if err := e.merge(ctx, a, b, deleted); err != nil {
				e.logger.Error("merge failed",
					logger.String("id1", a.ID),
					logger.String("id2", b.ID),
					logger.Error(err))
				continue
			}
			report.Merged++
			e.metrics.DedupMerges.Inc()
		}
	}
}

// merge resolves one candidate pair: the more complete side is retained,
// ties keep the first-processed side; the loser's populated fields fill
// the winner's empty ones and the loser is deleted.
func (e *Engine) merge(ctx context.Context, a, b *domain.ContentItem, deleted map[string]bool) error {
	winner, loser := a, b
	if completeness(b) > completeness(a) {
		winner, loser = b, a
	}

	mergeInto(winner, loser)
	winner.Source = a.Source + "+" + b.Source

	if err := e.store.UpdateMerged(ctx, winner); err != nil {
		return fmt.Errorf("update retained item %s: %w", winner.ID, err)
	}
	if err := e.store.Delete(ctx, loser.ID); err != nil {
		return fmt.Errorf("delete merged item %s: %w", loser.ID, err)
	}
	deleted[loser.ID] = true
	return nil
}

// completeness counts the populated fields on an item.
func completeness(c *domain.ContentItem) int {
	score := 0
	for _, populated := range []bool{
		c.Title != "",
		c.OriginalTitle != "",
		c.Year != 0,
		c.Rating != 0,
		c.Language != "",
		c.Status != "",
		c.ReleaseDate != "",
		c.Director != "",
		c.Synopsis != "",
		c.PosterURL != "",
		c.BackdropURL != "",
		len(c.Genres) > 0,
		len(c.Tags) > 0,
		len(c.Actors) > 0,
		len(c.Gallery) > 0,
		len(c.StreamingURLs) > 0,
		len(c.RelatedContent) > 0,
	} {
		if populated {
			score++
		}
	}
	return score
}

// mergeInto copies the loser's populated fields into the winner's empty
// ones. Populated winner fields are never overwritten; list fields take
// the deduplicated union.
func mergeInto(winner, loser *domain.ContentItem) {
	if winner.OriginalTitle == "" {
		winner.OriginalTitle = loser.OriginalTitle
	}
	if winner.Year == 0 {
		winner.Year = loser.Year
	}
	if winner.Rating == 0 {
		winner.Rating = loser.Rating
	}
	if winner.Language == "" {
		winner.Language = loser.Language
	}
	if winner.Status == "" {
		winner.Status = loser.Status
	}
	if winner.ReleaseDate == "" {
		winner.ReleaseDate = loser.ReleaseDate
	}
	if winner.Director == "" {
		winner.Director = loser.Director
	}
	if winner.Synopsis == "" {
		winner.Synopsis = loser.Synopsis
	}
	if winner.PosterURL == "" {
		winner.PosterURL = loser.PosterURL
	}
	if winner.BackdropURL == "" {
		winner.BackdropURL = loser.BackdropURL
	}

	winner.Genres = unionStrings(winner.Genres, loser.Genres)
	winner.Tags = unionStrings(winner.Tags, loser.Tags)
	winner.Actors = unionStrings(winner.Actors, loser.Actors)
	winner.Gallery = unionStrings(winner.Gallery, loser.Gallery)
	winner.RelatedContent = unionStrings(winner.RelatedContent, loser.RelatedContent)
	winner.StreamingURLs = unionStreams(winner.StreamingURLs, loser.StreamingURLs)
}

func unionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, v := range lists {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func unionStreams(a, b []domain.StreamingURL) []domain.StreamingURL {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]domain.StreamingURL, 0, len(a)+len(b))
	for _, lists := range [][]domain.StreamingURL{a, b} {
		for _, v := range lists {
			if v.URL == "" || seen[v.URL] {
				continue
			}
			seen[v.URL] = true
			out = append(out, v)
		}
	}
	return out
}
