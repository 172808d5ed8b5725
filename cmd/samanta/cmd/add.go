package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/samanta/internal/assistant"
	"github.com/mfenderov/samanta/internal/events"
	"github.com/mfenderov/samanta/internal/extractor"
)

var addReindex bool

var addCmd = &cobra.Command{
	Use:   "add [url...]",
	Short: "Fetch news articles and append them to the article store",
	Long: `Fetch one or more news article pages, extract title, authors, date and
body, and append one row per article to the article store.

The chunk index is not updated unless --reindex is given; run
'samanta index' to rebuild it later.

Examples:
  # Add an article
  samanta add https://example.com/noticia

  # Add and rebuild the index afterwards
  samanta add https://example.com/a https://example.com/b --reindex`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().BoolVar(&addReindex, "reindex", false, "rebuild the chunk index after adding")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	slog.Debug("add command starting", "urls", len(args), "reindex", addReindex)

	var a *assistant.Assistant
	if addReindex {
		deps, err := newApp(ctx, &cfg, false)
		if err != nil {
			return err
		}
		defer deps.Close()

		added, stopWorker, err := deps.startIndexWorker(ctx, printIndexEvent)
		if err != nil {
			return err
		}
		defer stopWorker()
		a = deps.newAssistant(assistant.WithArticleEvents(added))
	} else {
		store, _, err := newArticleStore(ctx, &cfg)
		if err != nil {
			return err
		}
		a = assistant.New(newExtractor(&cfg), store, nil, nil)
	}

	failed := 0
	for _, url := range args {
		article, err := a.AddArticle(ctx, "", url)
		if err != nil {
			failed++
			var ee *extractor.ExtractionError
			if errors.As(err, &ee) && ee.StatusCode != 0 {
				fmt.Printf("Error: %s returned status %d\n", url, ee.StatusCode)
				continue
			}
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("Added: %s\n", article.Title)
		fmt.Printf("  URL: %s\n", article.URL)
	}

	if failed == len(args) {
		return fmt.Errorf("no articles added")
	}
	return nil
}

func printIndexEvent(event events.IndexCompleteEvent) {
	if event.Err != nil {
		fmt.Printf("Reindex failed: %v\n", event.Err)
		return
	}
	fmt.Printf("Index rebuilt: %d articles, %d chunks in %v\n", event.Articles, event.Chunks, event.Duration)
}
