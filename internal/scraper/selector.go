package scraper

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"

	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/sources"
)

// maxListingPages caps pagination depth during discovery, independent of
// the URL limit, so a broken next-page selector cannot loop forever.
const maxListingPages = 50

var (
	yearRe   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	ratingRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// SelectorScraper is the generic Scraper driven entirely by the selector
// set in a source's registry entry. Listing pages are walked with a colly
// collector; detail pages go through the shared fetch client.
type SelectorScraper struct {
	cfg    *sources.SourceConfig
	client *Client
	logger logger.Logger
}

// NewSelectorScraper builds a scraper for one source config.
func NewSelectorScraper(cfg *sources.SourceConfig, client *Client, log logger.Logger) *SelectorScraper {
	return &SelectorScraper{
		cfg:    cfg,
		client: client,
		logger: log.With(logger.String("source", cfg.Name)),
	}
}

// DiscoverURLs pages through the source's listing endpoint collecting
// detail links until limit is reached or pages run out. The base URL is
// tried first, then each fallback.
func (s *SelectorScraper) DiscoverURLs(ctx context.Context, limit int) ([]string, error) {
	var lastErr error
	for _, base := range s.cfg.URLs() {
		urls, err := s.discoverFrom(ctx, base, limit)
		if err == nil && len(urls) > 0 {
			return urls, nil
		}
		if err != nil {
			lastErr = err
			s.logger.Warn("listing discovery failed, trying fallback",
				logger.String("base_url", base),
				logger.Error(err))
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (s *SelectorScraper) discoverFrom(ctx context.Context, base string, limit int) ([]string, error) {
	var (
		mu    sync.Mutex
		urls  []string
		seen  = make(map[string]struct{})
		pages int
	)

	c := colly.NewCollector(
		colly.UserAgent(s.client.UserAgent()),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.client.cfg.Timeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       s.client.Delay(),
		RandomDelay: s.client.Delay(),
	}); err != nil {
		return nil, fmt.Errorf("configure limit rule: %w", err)
	}

	c.OnHTML(s.cfg.Selectors.ItemLink, func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, dup := seen[link]; dup || len(urls) >= limit {
			return
		}
		seen[link] = struct{}{}
		urls = append(urls, link)
	})

	if s.cfg.Selectors.NextPage != "" {
		c.OnHTML(s.cfg.Selectors.NextPage, func(e *colly.HTMLElement) {
			mu.Lock()
			full := len(urls) >= limit
			pages++
			depth := pages
			mu.Unlock()
			if full || depth >= maxListingPages {
				return
			}
			next := e.Request.AbsoluteURL(e.Attr("href"))
			if next != "" {
				_ = e.Request.Visit(next)
			}
		})
	}

	listing := strings.TrimSuffix(base, "/") + s.cfg.Selectors.ListingPath
	if err := c.Visit(listing); err != nil {
		return nil, &domain.NetworkError{URL: listing, Err: err}
	}
	c.Wait()

	s.logger.Debug("discovered urls",
		logger.Int("count", len(urls)),
		logger.String("listing", listing))
	return urls, nil
}

// ExtractDetails parses a single detail page.
func (s *SelectorScraper) ExtractDetails(ctx context.Context, url string) (*domain.ContentItem, error) {
	doc, err := s.client.FetchDocument(ctx, url)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s.parseDetail(doc, url)
}

func (s *SelectorScraper) parseDetail(doc *goquery.Document, url string) (*domain.ContentItem, error) {
	sel := s.cfg.Selectors

	title := cleanText(doc.Find(sel.Title).First().Text())
	if title == "" {
		return nil, &domain.ParseError{URL: url, Reason: "missing title"}
	}

	item := &domain.ContentItem{
		Title:         title,
		OriginalTitle: cleanText(doc.Find(sel.OriginalTitle).First().Text()),
		Type:          s.cfg.Category,
		Source:        s.cfg.Name,
		Synopsis:      cleanText(doc.Find(sel.Synopsis).First().Text()),
		Director:      cleanText(doc.Find(sel.Director).First().Text()),
	}
	if len(s.cfg.Languages) > 0 {
		item.Language = s.cfg.Languages[0]
	}

	if year := yearRe.FindString(doc.Find(sel.Year).First().Text()); year != "" {
		item.Year, _ = strconv.Atoi(year)
	}
	if raw := ratingRe.FindString(doc.Find(sel.Rating).First().Text()); raw != "" {
		if rating, parseErr := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64); parseErr == nil && rating >= 0 && rating <= 10 {
			item.Rating = rating
		}
	}

	doc.Find(sel.Genres).Each(func(_ int, g *goquery.Selection) {
		if genre := cleanText(g.Text()); genre != "" {
			item.Genres = append(item.Genres, genre)
		}
	})
	doc.Find(sel.Actors).Each(func(_ int, a *goquery.Selection) {
		if actor := cleanText(a.Text()); actor != "" {
			item.Actors = append(item.Actors, actor)
		}
	})

	if poster := doc.Find(sel.Poster).First(); poster.Length() > 0 {
		src, ok := poster.Attr("src")
		if !ok || src == "" {
			src, _ = poster.Attr("data-src")
		}
		item.PosterURL = src
	}

	if status := strings.ToLower(cleanText(doc.Find(sel.Status).First().Text())); status != "" {
		if strings.Contains(status, "ongoing") || strings.Contains(status, "airing") {
			item.Status = domain.StatusOngoing
		} else {
			item.Status = status
		}
	}

	doc.Find(sel.Streaming).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		quality, _ := a.Attr("data-quality")
		if quality == "" {
			quality = cleanText(a.Text())
		}
		item.StreamingURLs = append(item.StreamingURLs, domain.StreamingURL{
			Quality: quality,
			URL:     href,
		})
	})

	return item, nil
}

var spaceRe = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
