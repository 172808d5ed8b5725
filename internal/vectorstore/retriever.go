package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/samanta/pkg/models"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 4

// QueryEmbedder embeds a search query.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrieverOptions configures a Retriever.
type RetrieverOptions struct {
	TopK   int
	Hybrid bool // Fuse keyword results when the store supports them
}

// Retriever embeds a query and returns the closest chunks from a store.
type Retriever struct {
	store    Store
	embedder QueryEmbedder
	topK     int
	hybrid   bool
}

// NewRetriever creates a Retriever. A non-positive TopK uses DefaultTopK.
func NewRetriever(store Store, embedder QueryEmbedder, opts RetrieverOptions) *Retriever {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, embedder: embedder, topK: topK, hybrid: opts.Hybrid}
}

// TopK returns the configured result count.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve returns up to TopK chunks for query, best first. An empty store
// yields no chunks and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := r.store.Search(ctx, vector, r.topK)
	if err != nil {
		return nil, err
	}

	ks, ok := r.store.(KeywordSearcher)
	if !r.hybrid || !ok {
		return chunks, nil
	}

	keyword, err := ks.KeywordSearch(ctx, query, r.topK)
	if err != nil {
		slog.Warn("keyword search failed, using vector results only", "error", err)
		return chunks, nil
	}
	return FuseRRF(r.topK, chunks, keyword), nil
}
