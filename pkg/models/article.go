package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Canonical Article columns. The article store writes them and the indexer
// reads them, so both sides share one field-name contract.
const (
	ColumnTitle   = "title"
	ColumnAuthors = "authors"
	ColumnDate    = "date"
	ColumnContent = "content"
	ColumnURL     = "url"
)

// ArticleColumns lists the canonical columns in file order.
var ArticleColumns = []string{ColumnTitle, ColumnAuthors, ColumnDate, ColumnContent, ColumnURL}

// AuthorSeparator joins authors inside a single column value.
const AuthorSeparator = ", "

// Placeholders used when a field cannot be extracted from the page.
const (
	PlaceholderTitle   = "Título no encontrado"
	PlaceholderAuthors = "No se encontraron autores"
	PlaceholderAuthor  = "Autor no encontrado"
	PlaceholderDate    = "Fecha no encontrada"
	PlaceholderContent = "Contenido no encontrado"
)

// Article is a news article extracted from a web page.
type Article struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Date    string   `json:"date"`
	Content string   `json:"content"`
	URL     string   `json:"url"`
}

// Record returns the article as a column -> value map using the canonical columns.
func (a Article) Record() map[string]string {
	return map[string]string{
		ColumnTitle:   a.Title,
		ColumnAuthors: strings.Join(a.Authors, AuthorSeparator),
		ColumnDate:    a.Date,
		ColumnContent: a.Content,
		ColumnURL:     a.URL,
	}
}

// ArticleFromRecord rebuilds an Article from a stored row.
func ArticleFromRecord(rec map[string]string) Article {
	var authors []string
	if v := rec[ColumnAuthors]; v != "" {
		authors = strings.Split(v, AuthorSeparator)
	}
	return Article{
		Title:   rec[ColumnTitle],
		Authors: authors,
		Date:    rec[ColumnDate],
		Content: rec[ColumnContent],
		URL:     rec[ColumnURL],
	}
}

// Render formats the article as labelled fields for inclusion in a prompt.
func (a Article) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Título: %s\n", a.Title)
	fmt.Fprintf(&b, "Fecha: %s\n", a.Date)
	fmt.Fprintf(&b, "Autor: %s\n", strings.Join(a.Authors, AuthorSeparator))
	fmt.Fprintf(&b, "Contenido: %s\n", a.Content)
	fmt.Fprintf(&b, "Enlace: %s", a.URL)
	return b.String()
}

// Chunk is a bounded slice of article text used as the retrieval unit.
type Chunk struct {
	ID      string  `json:"id"`
	Index   int     `json:"index"`
	Content string  `json:"content"`
	Score   float32 `json:"score,omitempty"`
}

// GenerateChunkID creates a deterministic ID from the chunk position and text,
// so re-indexing the same corpus overwrites instead of duplicating.
// The ID is the first 16 hex chars of a SHA-256 hash.
func GenerateChunkID(index int, content string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", index, content)))
	return hex.EncodeToString(hash[:])[:16]
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message in a session transcript.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
