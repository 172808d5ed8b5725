package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/mfenderov/samanta/internal/events"
)

// Run consumes article events and reindexes after each one, until added is
// closed or ctx is done. Events that queue up while a run is in progress
// are coalesced into the next run. Each finished run is reported on done
// when it is non-nil; Run closes done on return.
func (ix *Indexer) Run(ctx context.Context, added <-chan events.ArticleAddedEvent, done chan<- events.IndexCompleteEvent) {
	if done != nil {
		defer close(done)
	}

	for {
		var event events.ArticleAddedEvent
		select {
		case <-ctx.Done():
			return
		case e, ok := <-added:
			if !ok {
				return
			}
			event = e
		}

		open := true
	drain:
		for {
			select {
			case e, ok := <-added:
				if !ok {
					open = false
					break drain
				}
				event = e
			default:
				break drain
			}
		}

		slog.Debug("reindex triggered", "url", event.URL, "session", event.SessionID)

		start := time.Now()
		result, err := ix.Reindex(ctx, Options{})
		complete := events.IndexCompleteEvent{
			Trigger:  event.URL,
			Duration: time.Since(start),
			Err:      err,
		}
		if err != nil {
			slog.Error("reindex failed", "url", event.URL, "error", err)
		} else {
			complete.Articles = result.Articles
			complete.Chunks = result.Chunks
		}

		if done != nil {
			select {
			case done <- complete:
			case <-ctx.Done():
				return
			}
		}

		if !open {
			return
		}
	}
}
