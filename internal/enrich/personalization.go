package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/flori92/FloDrama-sub001/internal/domain"
)

// PersonalizationClient pushes freshly enriched items to the
// personalization service. Pushes are best effort; the caller logs and
// ignores failures.
type PersonalizationClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewPersonalizationClient creates a push client. An empty endpoint
// disables pushing.
func NewPersonalizationClient(endpoint string) *PersonalizationClient {
	return &PersonalizationClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether a push target is configured.
func (c *PersonalizationClient) Enabled() bool {
	return c.endpoint != ""
}

// Push sends the item's external shape to the personalization service.
func (c *PersonalizationClient) Push(ctx context.Context, item *domain.ContentItem) error {
	body, err := json.Marshal(item.External())
	if err != nil {
		return fmt.Errorf("encode item %s: %w", item.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push item %s: %w", item.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push item %s: status %d", item.ID, resp.StatusCode)
	}
	return nil
}
