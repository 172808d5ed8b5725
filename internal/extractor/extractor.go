package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/mfenderov/samanta/pkg/models"
)

// bodySelectors are tried in order; the first match holds the article paragraphs.
var bodySelectors = []string{
	"div.article-body",
	"section.content",
	"article",
}

// Config holds extractor configuration.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// ExtractionError reports a fetch that did not produce a usable page.
// StatusCode is 0 when no HTTP response was received.
type ExtractionError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor fetches news pages and extracts article fields.
type Extractor struct {
	config Config
}

// New creates a new Extractor with the given configuration.
func New(config Config) *Extractor {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "samanta/1.0"
	}
	return &Extractor{config: config}
}

// Extract fetches the URL and returns the article found on the page.
// Only transport failures and non-200 responses are errors; missing fields
// degrade to placeholders.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*models.Article, error) {
	var (
		body      []byte
		status    int
		fetchErr  error
		cancelled bool
	)

	c := colly.NewCollector(
		colly.UserAgent(e.config.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(e.config.Timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			slog.Debug("extract cancelled", "url", r.URL.String())
			r.Abort()
			cancelled = true
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
		fetchErr = err
	})

	slog.Debug("fetching article", "url", pageURL)

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if cancelled {
		return nil, &ExtractionError{URL: pageURL, Err: ctx.Err()}
	}
	if status != 0 && status != http.StatusOK {
		return nil, &ExtractionError{URL: pageURL, StatusCode: status, Err: fetchErr}
	}
	if fetchErr != nil {
		return nil, &ExtractionError{URL: pageURL, Err: fetchErr}
	}

	article, err := Parse(pageURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	slog.Debug("article extracted", "url", pageURL, "title", article.Title, "content_len", len(article.Content))
	return &article, nil
}

// Parse extracts article fields from an HTML document.
func Parse(pageURL string, r io.Reader) (models.Article, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return models.Article{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return models.Article{
		Title:   extractTitle(doc),
		Authors: extractAuthors(doc),
		Date:    extractDate(doc),
		Content: extractContent(doc),
		URL:     pageURL,
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return models.PlaceholderTitle
	}
	return title.Text()
}

func extractAuthors(doc *goquery.Document) []string {
	var authors []string
	doc.Find(`meta[name="author"]`).Each(func(_ int, s *goquery.Selection) {
		author, ok := s.Attr("content")
		if !ok {
			author = models.PlaceholderAuthor
		}
		authors = append(authors, author)
	})
	if len(authors) == 0 {
		return []string{models.PlaceholderAuthors}
	}
	return authors
}

func extractDate(doc *goquery.Document) string {
	if date, ok := doc.Find(`meta[name="date"]`).First().Attr("content"); ok {
		return date
	}
	return models.PlaceholderDate
}

func extractContent(doc *goquery.Document) string {
	for _, selector := range bodySelectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}

		var paragraphs []string
		container.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := strings.TrimSpace(p.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		})
		return strings.Join(paragraphs, " ")
	}
	return models.PlaceholderContent
}
