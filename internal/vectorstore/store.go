// Package vectorstore persists embedded chunks and retrieves the ones most
// similar to a query.
package vectorstore

import (
	"context"
	"math"
	"sort"

	"github.com/mfenderov/samanta/pkg/models"
)

// Record is a chunk with its embedding, as written to a store.
type Record struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

// Chunk returns the record without its embedding.
func (r Record) Chunk() models.Chunk {
	return models.Chunk{ID: r.ID, Index: r.Index, Content: r.Content}
}

// Store is a persistent collection of embedded chunks.
// Upserting a record with an existing ID replaces it.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

// KeywordSearcher is implemented by stores that also support full-text search.
type KeywordSearcher interface {
	KeywordSearch(ctx context.Context, query string, k int) ([]models.Chunk, error)
}

// rrfK is the rank constant for reciprocal rank fusion.
const rrfK = 60

// FuseRRF merges ranked result lists with reciprocal rank fusion and returns
// the top k. The fused score replaces the per-list scores.
func FuseRRF(k int, lists ...[]models.Chunk) []models.Chunk {
	type agg struct {
		chunk models.Chunk
		score float64
	}
	byID := map[string]*agg{}
	var order []string
	for _, list := range lists {
		for rank, c := range list {
			a, ok := byID[c.ID]
			if !ok {
				a = &agg{chunk: c}
				byID[c.ID] = a
				order = append(order, c.ID)
			}
			a.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	out := make([]models.Chunk, 0, len(order))
	for _, id := range order {
		a := byID[id]
		a.chunk.Score = float32(a.score)
		out = append(out, a.chunk)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 if either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
