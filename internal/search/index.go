// Package search maintains the catalog's Elasticsearch mirror and answers
// similar-content queries.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/flori92/FloDrama-sub001/internal/config"
	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
)

// NewClient creates an Elasticsearch client and verifies the connection.
func NewClient(cfg config.SearchConfig) (*es.Client, error) {
	url := cfg.URL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	clientConfig := es.Config{
		Addresses:  []string{url},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch ping failed: %s", string(body))
	}
	return client, nil
}

// Index mirrors catalog items into per-catalog indices
// (<prefix>-drama, <prefix>-anime, ...).
type Index struct {
	client *es.Client
	prefix string
	logger logger.Logger
}

// NewIndex creates the index adapter.
func NewIndex(client *es.Client, prefix string, log logger.Logger) *Index {
	return &Index{client: client, prefix: prefix, logger: log}
}

func (i *Index) indexName(contentType domain.ContentType) string {
	return fmt.Sprintf("%s-%s", i.prefix, contentType)
}

// IndexItem writes or refreshes one item's search document.
func (i *Index) IndexItem(ctx context.Context, item *domain.ContentItem) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", item.ID, err)
	}

	res, err := i.client.Index(
		i.indexName(item.Type),
		bytes.NewReader(body),
		i.client.Index.WithDocumentID(item.ID),
		i.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index item %s: %w", item.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index item %s: elasticsearch returned %d: %s",
			item.ID, res.StatusCode, string(raw))
	}
	return nil
}

// DeleteItem removes an item's search document. Missing documents are not
// an error; the mirror may lag the datastore.
func (i *Index) DeleteItem(ctx context.Context, contentType domain.ContentType, id string) error {
	res, err := i.client.Delete(
		i.indexName(contentType),
		id,
		i.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("delete document %s: elasticsearch returned %d: %s",
			id, res.StatusCode, string(raw))
	}
	return nil
}

// SimilarContent returns IDs of up to size items resembling the given one:
// same content type, boosted on genre, cast, director and synopsis
// overlap, the item itself excluded.
func (i *Index) SimilarContent(ctx context.Context, item *domain.ContentItem, size int) ([]string, error) {
	should := make([]map[string]any, 0, 4)
	if len(item.Genres) > 0 {
		should = append(should, map[string]any{
			"terms": map[string]any{"genres": item.Genres, "boost": 3.0},
		})
	}
	if len(item.Actors) > 0 {
		should = append(should, map[string]any{
			"terms": map[string]any{"actors": item.Actors, "boost": 2.0},
		})
	}
	if item.Director != "" {
		should = append(should, map[string]any{
			"match": map[string]any{"director": map[string]any{"query": item.Director, "boost": 2.0}},
		})
	}
	if item.Synopsis != "" {
		should = append(should, map[string]any{
			"match": map[string]any{"synopsis": map[string]any{"query": item.Synopsis}},
		})
	}
	if len(should) == 0 {
		return nil, nil
	}

	query := map[string]any{
		"size":    size,
		"_source": false,
		"query": map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
				"must_not": []map[string]any{
					{"ids": map[string]any{"values": []string{item.ID}}},
				},
				"filter": []map[string]any{
					{"term": map[string]any{"type": string(item.Type)}},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encode similar query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.indexName(item.Type)),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("similar-content search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("similar-content search returned %d: %s",
			res.StatusCode, string(raw))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode similar-content response: %w", err)
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
