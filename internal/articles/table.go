package articles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/mfenderov/samanta/pkg/models"
)

// Table is the in-memory form of the article file: a header plus rows keyed by column.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// ReadTable decodes a comma-separated table whose first row is the header.
// An empty input yields an empty table.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &Table{Columns: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(t.Rows)+1, err)
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = record[i]
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// Write encodes the table with its header row.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = row[col]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// AppendRow adds a row, extending the header with any of columns not yet present.
// Existing rows read as empty for the new columns.
func (t *Table) AppendRow(columns []string, row map[string]string) {
	for _, col := range columns {
		if !t.HasColumn(col) {
			t.Columns = append(t.Columns, col)
		}
	}
	t.Rows = append(t.Rows, row)
}

// AppendArticle adds an article using the canonical columns.
func (t *Table) AppendArticle(article models.Article) {
	t.AppendRow(models.ArticleColumns, article.Record())
}

// HasColumn reports whether the header contains the exact column name.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Articles converts every row to an Article.
func (t *Table) Articles() []models.Article {
	out := make([]models.Article, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = models.ArticleFromRecord(row)
	}
	return out
}
