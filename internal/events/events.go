package events

import "time"

// ArticleAddedEvent is sent when an extracted article has been appended to the store.
type ArticleAddedEvent struct {
	URL       string    // Article URL that was extracted
	Title     string    // Extracted title (may be a placeholder)
	SessionID string    // Session that added the article, empty from the CLI
	Timestamp time.Time // When the article was stored
}

// IndexCompleteEvent is sent when a reindex run finishes.
type IndexCompleteEvent struct {
	Trigger  string        // URL of the article that triggered the run
	Articles int           // Number of articles with content
	Chunks   int           // Number of chunks written
	Duration time.Duration // How long indexing took
	Err      error         // Fatal error, nil on success
}
