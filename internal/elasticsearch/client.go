package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/mfenderov/samanta/internal/vectorstore"
	"github.com/mfenderov/samanta/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses  []string
	Index      string
	Username   string
	Password   string
	Dimensions int // Embedding dimensions for the dense_vector field
}

// Client stores chunk embeddings in an Elasticsearch index.
// It implements vectorstore.Store and vectorstore.KeywordSearcher.
type Client struct {
	es    *elasticsearch.Client
	index string
	dims  int
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index is required")
	}
	if config.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive")
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
		dims:  config.Dimensions,
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

// indexMapping defines the ES index mapping for chunks.
func (c *Client) indexMapping() string {
	return fmt.Sprintf(`{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"index": { "type": "integer" },
			"content": { "type": "text", "analyzer": "spanish" },
			"embedding": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "cosine"
			}
		}
	}
}`, c.dims)
}

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
		c.es.Indices.Create.WithBody(strings.NewReader(c.indexMapping())),
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

// DeleteIndex removes the index.
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// bulkResponse is the subset of the bulk API response we inspect.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Error *struct {
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Upsert indexes records with the bulk API, using the chunk ID as document ID.
// The index is refreshed so the records are searchable on return.
func (c *Client) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := c.CreateIndex(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		meta := map[string]any{"index": map[string]any{"_id": r.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to marshal bulk meta: %w", err)
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
	}

	res, err := c.es.Bulk(
		&buf,
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
		c.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("failed to index records: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing records (status %d): %s", res.StatusCode, res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if br.Errors {
		for _, item := range br.Items {
			for _, op := range item {
				if op.Error != nil {
					return fmt.Errorf("error indexing record: %s", op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk request reported errors")
	}

	slog.Debug("indexed records", "index", c.index, "count", len(records))
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float32            `json:"_score"`
			Source vectorstore.Record `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search performs an approximate kNN search over chunk embeddings.
func (c *Client) Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	return c.search(ctx, map[string]any{
		"knn": map[string]any{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
		},
		"size":    k,
		"_source": []string{"id", "index", "content"},
	})
}

// KeywordSearch performs a BM25 text search on chunk content.
func (c *Client) KeywordSearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	return c.search(ctx, map[string]any{
		"query": map[string]any{
			"match": map[string]any{
				"content": query,
			},
		},
		"size":    k,
		"_source": []string{"id", "index", "content"},
	})
}

func (c *Client) search(ctx context.Context, searchQuery map[string]any) ([]models.Chunk, error) {
	data, err := json.Marshal(searchQuery)
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

	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	chunks := make([]models.Chunk, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		chunks[i] = hit.Source.Chunk()
		chunks[i].Score = hit.Score
	}

	return chunks, nil
}

// Count returns the number of chunks in the index. A missing index counts as empty.
func (c *Client) Count(ctx context.Context) (int, error) {
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(c.index),
	)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return 0, nil
	}
	if res.IsError() {
		return 0, fmt.Errorf("count error: %s", res.String())
	}

	var cr struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return cr.Count, nil
}

// Reset drops and recreates the index.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.DeleteIndex(ctx); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	return c.CreateIndex(ctx)
}

// Close is a no-op; the HTTP transport needs no teardown.
func (c *Client) Close() error {
	return nil
}
