package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/mfenderov/hvlinks/internal/store"
	"github.com/mfenderov/hvlinks/pkg/models"
)

// maxResults bounds a single Query; it is the default index.max_result_window.
const maxResults = 10000

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Client is a link store backed by an Elasticsearch index.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index is required")
	}

	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:    es,
		index: config.Index,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping stores keywords as the comma-joined keyword string so that
// the wildcard filter sees the same value the embedded store does.
var indexMapping = `{
	"mappings": {
		"properties": {
			"url": { "type": "keyword" },
			"type": { "type": "keyword" },
			"relevance_score": { "type": "float" },
			"keywords": { "type": "keyword" }
		}
	}
}`

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// linkSource is the stored document.
type linkSource struct {
	URL            string          `json:"url"`
	Type           models.LinkType `json:"type"`
	RelevanceScore float64         `json:"relevance_score"`
	Keywords       string          `json:"keywords"`
}

// bulkBody renders links as NDJSON index actions keyed by link ID.
func bulkBody(links []models.Link) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, link := range links {
		action := map[string]any{"index": map[string]any{"_id": models.LinkID(link.URL)}}
		if err := enc.Encode(action); err != nil {
			return nil, err
		}
		source := linkSource{
			URL:            link.URL,
			Type:           link.Type,
			RelevanceScore: link.RelevanceScore,
			Keywords:       store.JoinKeywords(link.Keywords),
		}
		if err := enc.Encode(source); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// bulkResponse is the part of the bulk API response needed to detect item failures.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Upsert indexes the batch through the bulk API and waits for it to become searchable.
// Indexing by link ID overwrites any earlier document for the same URL.
func (c *Client) Upsert(ctx context.Context, links []models.Link) error {
	if len(links) == 0 {
		return nil
	}

	data, err := bulkBody(links)
	if err != nil {
		return fmt.Errorf("failed to marshal links: %w", err)
	}

	res, err := c.es.Bulk(
		bytes.NewReader(data),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
		c.es.Bulk.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("bulk index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !br.Errors {
		return nil
	}

	for _, item := range br.Items {
		for _, result := range item {
			if result.Error != nil {
				return fmt.Errorf("failed to index %s (status %d): %s: %s",
					result.ID, result.Status, result.Error.Type, result.Error.Reason)
			}
		}
	}
	return fmt.Errorf("bulk index reported errors")
}

// escapeWildcard escapes the wildcard query metacharacters in s.
func escapeWildcard(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}

// buildQuery returns the search body for a threshold and optional keyword filter.
func buildQuery(minScore float64, keyword string) map[string]any {
	filters := []map[string]any{
		{"range": map[string]any{"relevance_score": map[string]any{"gte": minScore}}},
	}
	if keyword != "" {
		filters = append(filters, map[string]any{
			"wildcard": map[string]any{
				"keywords": map[string]any{
					"value":            "*" + escapeWildcard(keyword) + "*",
					"case_insensitive": true,
				},
			},
		})
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
		"sort": []map[string]any{{"url": map[string]any{"order": "asc"}}},
		"size": maxResults,
	}
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source linkSource `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query returns links scoring at least minScore whose keywords contain keyword, ordered by URL.
func (c *Client) Query(ctx context.Context, minScore float64, keyword string) ([]models.Link, error) {
	data, err := json.Marshal(buildQuery(minScore, keyword))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	links := make([]models.Link, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		links[i] = models.Link{
			URL:            hit.Source.URL,
			Type:           hit.Source.Type,
			RelevanceScore: hit.Source.RelevanceScore,
			Keywords:       store.SplitKeywords(hit.Source.Keywords),
		}
	}

	return links, nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// Close is a no-op; the HTTP transport holds no resources that need releasing.
func (c *Client) Close() error {
	return nil
}

var _ store.Store = (*Client)(nil)
