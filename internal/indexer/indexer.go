// Package indexer rebuilds the chunk vector store from the article table.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mfenderov/samanta/internal/articles"
	"github.com/mfenderov/samanta/internal/chunker"
	"github.com/mfenderov/samanta/internal/embeddings"
	"github.com/mfenderov/samanta/internal/vectorstore"
	"github.com/mfenderov/samanta/pkg/models"
)

// MissingColumnError is returned when the article table lacks the body column.
type MissingColumnError struct {
	Column string
	Path   string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found in %s", e.Column, e.Path)
}

// upsertBatch bounds the records sent to the vector store per call.
const upsertBatch = 256

// Options controls a reindex run.
type Options struct {
	Fresh bool // Drop existing chunks before writing
}

// Result holds reindex execution results.
type Result struct {
	Articles int
	Chunks   int
	Duration time.Duration
}

// Indexer reads articles, splits their bodies, embeds the chunks and
// writes them to a vector store.
type Indexer struct {
	articles articles.Store
	source   string
	splitter *chunker.Splitter
	embedder embeddings.Embedder
	vectors  vectorstore.Store
}

// New creates a new Indexer. source names the article table in errors and logs.
func New(
	store articles.Store,
	source string,
	splitter *chunker.Splitter,
	embedder embeddings.Embedder,
	vectors vectorstore.Store,
) *Indexer {
	return &Indexer{
		articles: store,
		source:   source,
		splitter: splitter,
		embedder: embedder,
		vectors:  vectors,
	}
}

// Reindex rebuilds the vector store from every article body. Nothing is
// written until all chunks are embedded; a missing content column fails
// before any model call.
func (ix *Indexer) Reindex(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{}

	slog.Info("starting reindex", "source", ix.source, "fresh", opts.Fresh)

	table, err := ix.articles.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}
	if !table.HasColumn(models.ColumnContent) {
		return nil, &MissingColumnError{Column: models.ColumnContent, Path: ix.source}
	}

	var bodies []string
	for _, row := range table.Rows {
		if body := row[models.ColumnContent]; body != "" {
			bodies = append(bodies, body)
		}
	}
	result.Articles = len(bodies)

	chunks := ix.splitter.Split(strings.Join(bodies, " "))
	slog.Debug("split articles", "articles", result.Articles, "chunks", len(chunks))

	vectors, err := ix.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(vectors))
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, text := range chunks {
		records[i] = vectorstore.Record{
			ID:        models.GenerateChunkID(i, text),
			Index:     i,
			Content:   text,
			Embedding: vectors[i],
		}
	}

	if opts.Fresh {
		if err := ix.vectors.Reset(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset vector store: %w", err)
		}
	}

	for i := 0; i < len(records); i += upsertBatch {
		end := min(i+upsertBatch, len(records))
		if err := ix.vectors.Upsert(ctx, records[i:end]); err != nil {
			return nil, fmt.Errorf("failed to write chunks: %w", err)
		}
	}
	result.Chunks = len(records)

	result.Duration = time.Since(start)
	slog.Info("reindex complete",
		"articles", result.Articles,
		"chunks", result.Chunks,
		"duration", result.Duration)

	return result, nil
}
