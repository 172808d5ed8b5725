package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/blevesearch/bleve"
	bolt "go.etcd.io/bbolt"

	"github.com/mfenderov/samanta/pkg/models"
)

const (
	chunksFile   = "chunks.db"
	keywordIndex = "keyword.bleve"
)

// Local is a Store kept in a directory on disk. Vectors live in a bbolt
// file and are searched by brute-force cosine similarity; chunk text is
// also indexed in bleve for keyword search.
type Local struct {
	dir        string
	collection []byte
	db         *bolt.DB
	keyword    bleve.Index
}

// keywordDoc is the document shape indexed in bleve.
type keywordDoc struct {
	Content string `json:"content"`
}

// OpenLocal opens (or creates) a local store in dir. Each collection is a
// separate bucket in the same file.
func OpenLocal(dir, collection string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, chunksFile), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open vector db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(collection))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	keyword, err := openKeywordIndex(filepath.Join(dir, collection+"."+keywordIndex))
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("opened local vector store", "dir", dir, "collection", collection)

	return &Local{
		dir:        dir,
		collection: []byte(collection),
		db:         db,
		keyword:    keyword,
	}, nil
}

func openKeywordIndex(path string) (bleve.Index, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}
	return index, nil
}

// Upsert writes records, replacing any with the same ID.
func (l *Local) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(l.collection)
		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to marshal record %s: %w", r.ID, err)
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	batch := l.keyword.NewBatch()
	for _, r := range records {
		if err := batch.Index(r.ID, keywordDoc{Content: r.Content}); err != nil {
			return fmt.Errorf("failed to index record %s: %w", r.ID, err)
		}
	}
	if err := l.keyword.Batch(batch); err != nil {
		return fmt.Errorf("failed to write keyword index: %w", err)
	}
	return nil
}

// Search returns the k records most similar to vector, best first.
// Ties keep chunk order.
func (l *Local) Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	var hits []models.Chunk
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(l.collection).ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			c := r.Chunk()
			c.Score = float32(Cosine(vector, r.Embedding))
			hits = append(hits, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Index < hits[j].Index
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// KeywordSearch returns the k records best matching query by BM25-style scoring.
func (l *Local) KeywordSearch(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 || query == "" {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), k, 0, false)
	res, err := l.keyword.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	hits := make([]models.Chunk, 0, len(res.Hits))
	err = l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(l.collection)
		for _, h := range res.Hits {
			v := b.Get([]byte(h.ID))
			if v == nil {
				continue
			}
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			c := r.Chunk()
			c.Score = float32(h.Score)
			hits = append(hits, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	return hits, nil
}

// Count returns the number of stored records.
func (l *Local) Count(_ context.Context) (int, error) {
	var n int
	err := l.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(l.collection).Stats().KeyN
		return nil
	})
	return n, err
}

// Reset removes every record from the collection.
func (l *Local) Reset(_ context.Context) error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(l.collection); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(l.collection)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reset collection: %w", err)
	}

	path := filepath.Join(l.dir, string(l.collection)+"."+keywordIndex)
	if err := l.keyword.Close(); err != nil {
		return fmt.Errorf("failed to close keyword index: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove keyword index: %w", err)
	}
	keyword, err := openKeywordIndex(path)
	if err != nil {
		return err
	}
	l.keyword = keyword
	return nil
}

// Close releases the underlying files.
func (l *Local) Close() error {
	kerr := l.keyword.Close()
	if err := l.db.Close(); err != nil {
		return err
	}
	return kerr
}
