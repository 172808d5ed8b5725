package articles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mfenderov/samanta/pkg/models"
)

// Store appends extracted articles and loads the full table back.
// Appends load, extend, and rewrite the whole table; there is no locking,
// so concurrent writers can lose updates.
type Store interface {
	Append(ctx context.Context, article models.Article) error
	Load(ctx context.Context) (*Table, error)
}

// FileStore keeps the article table in a local CSV file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the CSV file at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the table; a missing file is an empty table.
func (s *FileStore) Load(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	return ReadTable(f)
}

// Append adds the article as a new row and rewrites the file.
func (s *FileStore) Append(ctx context.Context, article models.Article) error {
	table, err := s.Load(ctx)
	if err != nil {
		return err
	}
	table.AppendArticle(article)

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".articles-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := table.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	slog.Debug("article appended", "path", s.path, "rows", len(table.Rows), "url", article.URL)
	return nil
}
