package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/flori92/FloDrama-sub001/internal/config"
	"github.com/flori92/FloDrama-sub001/internal/domain"
)

// NLPClient calls the external sentiment and entity extraction service.
type NLPClient struct {
	endpoint      string
	minConfidence float64
	httpClient    *http.Client
}

// NewNLPClient creates a client for the configured NLP endpoint.
func NewNLPClient(cfg config.NLPConfig) *NLPClient {
	return &NLPClient{
		endpoint:      cfg.Endpoint,
		minConfidence: cfg.EntityConfidence,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Analysis is the filtered result of one NLP call.
type Analysis struct {
	Sentiment string
	Entities  []string
}

type nlpRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type nlpResponse struct {
	Sentiment string `json:"sentiment"`
	Entities  []struct {
		Text       string  `json:"text"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

// Analyze submits title and synopsis for analysis. Entities below the
// configured confidence threshold are dropped. Transport and non-2xx
// failures come back as EnrichmentServiceError.
func (c *NLPClient) Analyze(ctx context.Context, title, synopsis string) (*Analysis, error) {
	body, err := json.Marshal(nlpRequest{Title: title, Text: synopsis})
	if err != nil {
		return nil, fmt.Errorf("encode nlp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build nlp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.EnrichmentServiceError{Endpoint: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.EnrichmentServiceError{
			Endpoint: c.endpoint,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var parsed nlpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &domain.EnrichmentServiceError{
			Endpoint: c.endpoint,
			Err:      fmt.Errorf("decode response: %w", err),
		}
	}

	analysis := &Analysis{Sentiment: parsed.Sentiment}
	for _, e := range parsed.Entities {
		if e.Confidence >= c.minConfidence && e.Text != "" {
			analysis.Entities = append(analysis.Entities, e.Text)
		}
	}
	return analysis, nil
}
