package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/samanta/internal/indexer"
)

var indexFresh bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the chunk vector store from the article store",
	Long: `Read every article body from the article store, split the text into
overlapping chunks, embed them and write them to the vector store.

Re-running merges into the existing index; --fresh drops it first.

Examples:
  samanta index
  samanta index --fresh`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().BoolVar(&indexFresh, "fresh", false, "drop existing chunks before indexing")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	slog.Debug("index command starting", "fresh", indexFresh, "backend", cfg.VectorStore.Backend)

	deps, err := newApp(ctx, &cfg, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	ix, err := deps.newIndexer()
	if err != nil {
		return err
	}

	fmt.Printf("Indexing: %s\n", deps.source)

	result, err := ix.Reindex(ctx, indexer.Options{Fresh: indexFresh})
	if err != nil {
		var mce *indexer.MissingColumnError
		if errors.As(err, &mce) {
			return fmt.Errorf("%w (expected header: title,authors,date,content,url)", err)
		}
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Articles: %d\n", result.Articles)
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	fmt.Printf("  Duration: %v\n", result.Duration)

	return nil
}
