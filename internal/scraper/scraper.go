// Package scraper implements the two-step extraction contract every source
// must satisfy: discover candidate detail URLs, then extract one item per
// URL. Concrete scrapers are resolved through a typed registry built once
// at startup; there is no name-based guessing at dispatch time.
package scraper

import (
	"context"
	"fmt"

	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/sources"
)

// Scraper is the per-source extraction contract.
type Scraper interface {
	// DiscoverURLs returns up to limit candidate detail-page URLs, in
	// listing order.
	DiscoverURLs(ctx context.Context, limit int) ([]string, error)
	// ExtractDetails parses a single detail page into a ContentItem.
	// It returns domain.ErrNotFound for missing pages and *domain.ParseError
	// for pages that fetched but did not yield a valid item.
	ExtractDetails(ctx context.Context, url string) (*domain.ContentItem, error)
}

// Registry maps source names to their Scraper implementations.
type Registry struct {
	scrapers map[string]Scraper
}

// NewRegistry builds one SelectorScraper per configured source.
func NewRegistry(reg *sources.Registry, client *Client, log logger.Logger) *Registry {
	r := &Registry{scrapers: make(map[string]Scraper)}
	for _, cfg := range reg.All() {
		r.scrapers[cfg.Name] = NewSelectorScraper(cfg, client, log)
	}
	return r
}

// Register installs a scraper for a source, replacing any existing one.
// Used to plug in hand-written scrapers for sources whose markup the
// generic selector scraper cannot handle.
func (r *Registry) Register(source string, s Scraper) {
	r.scrapers[source] = s
}

// Get resolves the scraper for a source.
func (r *Registry) Get(source string) (Scraper, error) {
	s, ok := r.scrapers[source]
	if !ok {
		return nil, fmt.Errorf("no scraper registered for source %q: %w",
			source, domain.ErrNotFound)
	}
	return s, nil
}
