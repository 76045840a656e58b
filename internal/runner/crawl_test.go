package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flori92/FloDrama-sub001/internal/config"
	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
	"github.com/flori92/FloDrama-sub001/internal/scraper"
	"github.com/flori92/FloDrama-sub001/internal/sources"
)

type fakeScraper struct {
	urls        []string
	discoverErr error
	// extract maps a URL to its outcome; a nil item with nil error is
	// not a valid combination.
	extract map[string]extractResult
}

type extractResult struct {
	item *domain.ContentItem
	err  error
}

func (f *fakeScraper) DiscoverURLs(_ context.Context, _ int) ([]string, error) {
	return f.urls, f.discoverErr
}

func (f *fakeScraper) ExtractDetails(_ context.Context, url string) (*domain.ContentItem, error) {
	r := f.extract[url]
	return r.item, r.err
}

type fakeContentStore struct {
	upserted []*domain.ContentItem
	err      error
}

func (f *fakeContentStore) Upsert(_ context.Context, item *domain.ContentItem) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.upserted = append(f.upserted, item)
	return fmt.Sprintf("id-%d", len(f.upserted)), nil
}

type fakeLogStore struct {
	started  []*domain.ScrapingLog
	finished []*domain.ScrapingLog
}

func (f *fakeLogStore) Start(_ context.Context, log *domain.ScrapingLog) error {
	log.ID = fmt.Sprintf("log-%d", len(f.started)+1)
	f.started = append(f.started, log)
	return nil
}

func (f *fakeLogStore) Finish(_ context.Context, log *domain.ScrapingLog) error {
	f.finished = append(f.finished, log)
	return nil
}

type fakeIndex struct {
	indexed []*domain.ContentItem
}

func (f *fakeIndex) IndexItem(_ context.Context, item *domain.ContentItem) error {
	f.indexed = append(f.indexed, item)
	return nil
}

func testScrapers(t *testing.T, s scraper.Scraper) *scraper.Registry {
	t.Helper()
	reg, err := sources.New([]*sources.SourceConfig{{
		Name:                "voirdrama",
		BaseURL:             "https://voirdrama.example",
		Category:            domain.TypeDrama,
		Priority:            domain.PriorityUrgent,
		UpdateIntervalHours: 6,
	}})
	require.NoError(t, err)

	scrapers := scraper.NewRegistry(reg, scraper.NewClient(scraper.ClientConfig{}, logger.NewNop()), logger.NewNop())
	scrapers.Register("voirdrama", s)
	return scrapers
}

func newTestCrawler(t *testing.T, s scraper.Scraper, minItems int) (*Crawler, *fakeContentStore, *fakeLogStore, *fakeIndex) {
	t.Helper()
	content := &fakeContentStore{}
	logs := &fakeLogStore{}
	index := &fakeIndex{}
	cfg := config.CrawlConfig{MinItems: minItems, DiscoverLimit: 100}
	c := NewCrawler(testScrapers(t, s), content, logs, index, cfg,
		metrics.New(prometheus.NewRegistry()), logger.NewNop())
	return c, content, logs, index
}

func crawlTask() *domain.ScrapingTask {
	return &domain.ScrapingTask{
		ID:        "t1",
		Category:  "drama",
		Source:    "voirdrama",
		Priority:  domain.PriorityUrgent,
		Languages: []string{"ko"},
		Kind:      domain.TaskScraping,
	}
}

func TestRunBelowQuotaIsAdvisoryNotFatal(t *testing.T) {
	s := &fakeScraper{
		urls: []string{"/a", "/b", "/c", "/d", "/e"},
		extract: map[string]extractResult{
			"/a": {item: &domain.ContentItem{Title: "A"}},
			"/b": {item: &domain.ContentItem{Title: "B"}},
			"/c": {item: &domain.ContentItem{Title: "C"}},
			"/d": {err: &domain.NetworkError{URL: "/d", Err: errors.New("timeout")}},
			"/e": {err: &domain.ParseError{URL: "/e", Reason: "no title"}},
		},
	}
	c, content, logs, index := newTestCrawler(t, s, 5)

	err := c.Run(context.Background(), crawlTask())
	require.NoError(t, err)

	require.Len(t, logs.finished, 1)
	runLog := logs.finished[0]
	assert.True(t, runLog.Success)
	assert.Equal(t, domain.RunStatusQuotaNotMet, runLog.Status)
	assert.Equal(t, 3, runLog.ItemsCount)
	assert.Equal(t, 2, runLog.ErrorsCount)
	assert.NotNil(t, runLog.CompletedAt)

	assert.Len(t, content.upserted, 3)
	assert.Len(t, index.indexed, 3)
}

func TestRunCompletedWhenQuotaMet(t *testing.T) {
	s := &fakeScraper{
		urls: []string{"/a", "/b"},
		extract: map[string]extractResult{
			"/a": {item: &domain.ContentItem{Title: "A"}},
			"/b": {item: &domain.ContentItem{Title: "B"}},
		},
	}
	c, _, logs, _ := newTestCrawler(t, s, 2)

	require.NoError(t, c.Run(context.Background(), crawlTask()))
	assert.Equal(t, domain.RunStatusCompleted, logs.finished[0].Status)
}

func TestRunStopsEarlyOnceQuotaReached(t *testing.T) {
	s := &fakeScraper{
		urls: []string{"/a", "/b", "/c", "/d", "/e"},
		extract: map[string]extractResult{
			"/a": {item: &domain.ContentItem{Title: "A"}},
			"/b": {item: &domain.ContentItem{Title: "B"}},
			"/c": {item: &domain.ContentItem{Title: "C"}},
			"/d": {item: &domain.ContentItem{Title: "D"}},
			"/e": {item: &domain.ContentItem{Title: "E"}},
		},
	}
	c, content, logs, index := newTestCrawler(t, s, 2)

	require.NoError(t, c.Run(context.Background(), crawlTask()))

	// Extraction stops after the quota; the remaining URLs are never
	// scraped.
	runLog := logs.finished[0]
	assert.Equal(t, domain.RunStatusCompleted, runLog.Status)
	assert.Equal(t, 2, runLog.ItemsCount)
	assert.Len(t, content.upserted, 2)
	assert.Len(t, index.indexed, 2)
}

func TestRunStampsTaskAttributesOnItems(t *testing.T) {
	s := &fakeScraper{
		urls: []string{"/a"},
		extract: map[string]extractResult{
			"/a": {item: &domain.ContentItem{Title: "A"}},
		},
	}
	c, content, _, _ := newTestCrawler(t, s, 1)

	require.NoError(t, c.Run(context.Background(), crawlTask()))

	item := content.upserted[0]
	assert.Equal(t, "voirdrama", item.Source)
	assert.Equal(t, domain.TypeDrama, item.Type)
	assert.Equal(t, "ko", item.Language)
}

func TestRunSkipsMissingPagesWithoutCountingErrors(t *testing.T) {
	s := &fakeScraper{
		urls: []string{"/gone", "/a"},
		extract: map[string]extractResult{
			"/gone": {err: domain.ErrNotFound},
			"/a":    {item: &domain.ContentItem{Title: "A"}},
		},
	}
	c, _, logs, _ := newTestCrawler(t, s, 1)

	require.NoError(t, c.Run(context.Background(), crawlTask()))

	runLog := logs.finished[0]
	assert.Equal(t, 1, runLog.ItemsCount)
	assert.Equal(t, 0, runLog.ErrorsCount)
}

func TestRunFailedDiscoveryFailsTask(t *testing.T) {
	s := &fakeScraper{discoverErr: errors.New("all mirrors down")}
	c, _, logs, _ := newTestCrawler(t, s, 1)

	err := c.Run(context.Background(), crawlTask())
	require.Error(t, err)

	runLog := logs.finished[0]
	assert.False(t, runLog.Success)
	assert.Equal(t, domain.RunStatusFailed, runLog.Status)
	assert.Contains(t, runLog.ErrorMessage, "all mirrors down")
}

func TestRunBrokenDatastoreFailsTask(t *testing.T) {
	s := &fakeScraper{
		urls: []string{"/a"},
		extract: map[string]extractResult{
			"/a": {item: &domain.ContentItem{Title: "A"}},
		},
	}
	c, content, logs, _ := newTestCrawler(t, s, 1)
	content.err = errors.New("connection refused")

	err := c.Run(context.Background(), crawlTask())
	require.Error(t, err)
	assert.Equal(t, domain.RunStatusFailed, logs.finished[0].Status)
}
