package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
)

// userAgents is the rotation pool. Basic header rotation only; anything
// smarter than this is out of scope.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
}

// ClientConfig controls fetch behavior.
type ClientConfig struct {
	// Timeout bounds a single request, connect to body.
	Timeout time.Duration
	// MaxRetries bounds retry attempts per URL for network failures.
	MaxRetries int
	// RequestDelay is the client-side pacing between outbound requests.
	// A jitter of up to the same amount is added on retries.
	RequestDelay time.Duration
}

func (c *ClientConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RequestDelay <= 0 {
		c.RequestDelay = 500 * time.Millisecond
	}
}

// Client is the shared HTTP fetch client: per-request timeout, rotating
// User-Agent headers, client-side rate limiting and bounded retries with
// exponential backoff plus jitter on network failures.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        ClientConfig
	logger     logger.Logger
	uaIndex    atomic.Uint32
}

// NewClient creates a fetch client.
func NewClient(cfg ClientConfig, log logger.Logger) *Client {
	cfg.setDefaults()
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		cfg:        cfg,
		logger:     log,
	}
}

// UserAgent returns the next User-Agent from the rotation pool.
func (c *Client) UserAgent() string {
	idx := c.uaIndex.Add(1)
	return userAgents[int(idx)%len(userAgents)]
}

// Delay returns the configured inter-request delay, for callers that pace
// themselves (the colly collector uses this for its limit rule).
func (c *Client) Delay() time.Duration {
	return c.cfg.RequestDelay
}

// FetchDocument fetches a URL and parses the response body as HTML.
// Network failures are retried with exponential backoff and jitter up to
// the configured budget; a 404 maps to domain.ErrNotFound; other non-2xx
// statuses are treated as retryable network errors.
func (c *Client) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RequestDelay * (1 << (attempt - 1))
			backoff += time.Duration(rand.Int63n(int64(c.cfg.RequestDelay)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			c.logger.Debug("retrying fetch",
				logger.String("url", url),
				logger.Int("attempt", attempt))
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		doc, err := c.fetchOnce(ctx, url)
		if err == nil {
			return doc, nil
		}
		if !domain.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.UserAgent())
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &domain.NetworkError{
			URL: url,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &domain.ParseError{URL: url, Reason: fmt.Sprintf("invalid HTML: %v", err)}
	}
	return doc, nil
}
