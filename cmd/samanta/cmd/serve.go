package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/samanta/internal/assistant"
	"github.com/mfenderov/samanta/internal/events"
	"github.com/mfenderov/samanta/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for chat sessions.

Endpoints:
  POST /api/sessions                  create a session
  GET  /api/sessions/:id              session state and last article
  POST /api/sessions/:id/articles     add an article {"url": "..."}
  POST /api/sessions/:id/messages     ask a question {"text": "..."}
  GET  /api/sessions/:id/messages     conversation history
  GET  /healthz                       liveness
  GET  /metrics                       Prometheus metrics

Example:
  samanta serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	deps, err := newApp(ctx, &cfg, true)
	if err != nil {
		return err
	}
	defer deps.Close()

	var opts []assistant.Option
	if cfg.Server.ReindexOnAdd {
		added, stopWorker, err := deps.startIndexWorker(ctx, func(event events.IndexCompleteEvent) {
			if event.Err != nil {
				slog.Error("reindex failed", "trigger", event.Trigger, "error", event.Err)
				return
			}
			slog.Info("index updated", "trigger", event.Trigger, "articles", event.Articles, "chunks", event.Chunks, "duration", event.Duration)
		})
		if err != nil {
			return err
		}
		defer stopWorker()
		opts = append(opts, assistant.WithArticleEvents(added))
	}

	srv := server.New(deps.newAssistant(opts...))
	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", addr)
	return srv.Run(ctx, addr)
}
