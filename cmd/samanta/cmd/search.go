package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var searchFormat string

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show the chunks retrieved for a query",
	Long: `Embed a query and print the closest chunks from the vector store,
exactly as the chat pipeline would retrieve them.

Examples:
  # Basic search
  samanta search "inflación en Argentina"

  # JSON output for scripting
  samanta search "elecciones" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query := args[0]
	cfg := GetConfig()

	deps, err := newApp(ctx, &cfg, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	chunks, err := deps.retriever.Retrieve(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(chunks) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if searchFormat == "json" {
		output, err := json.MarshalIndent(chunks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(chunks))
	for i, chunk := range chunks {
		fmt.Printf("─── Result %d ───\n", i+1)
		fmt.Printf("ID:      %s\n", chunk.ID)
		fmt.Printf("Score:   %.4f\n", chunk.Score)
		fmt.Printf("Content:\n%s\n\n", chunk.Content)
	}
	return nil
}
