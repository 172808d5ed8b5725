package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/samanta/internal/assistant"
	"github.com/mfenderov/samanta/internal/config"
	"github.com/mfenderov/samanta/internal/events"
	"github.com/mfenderov/samanta/internal/extractor"
	"github.com/mfenderov/samanta/pkg/models"
)

var chatReindex bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session in the terminal",
	Long: `Start a chat session about the indexed news.

Every line is a question, except for these commands:
  /add <url>   fetch an article and use it as context for the next questions
  /history     print the conversation so far
  /quit        leave the session

Example:
  samanta chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().BoolVar(&chatReindex, "reindex", false, "rebuild the chunk index after every /add")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := chatConfig(GetConfig())
	deps, err := newApp(ctx, &cfg, true)
	if err != nil {
		return err
	}
	defer deps.Close()

	var opts []assistant.Option
	if chatReindex {
		added, stopWorker, err := deps.startIndexWorker(ctx, func(event events.IndexCompleteEvent) {
			if event.Err != nil {
				slog.Error("reindex failed", "trigger", event.Trigger, "error", event.Err)
			}
		})
		if err != nil {
			return err
		}
		defer stopWorker()
		opts = append(opts, assistant.WithArticleEvents(added))
	}
	a := deps.newAssistant(opts...)

	sess, err := a.Sessions().Create(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	slog.Debug("chat session started", "session", sess.ID)

	return chatLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a, sess.ID)
}

// chatConfig keeps the terminal session in memory for the life of the
// process, whatever the server session settings are.
func chatConfig(cfg config.Config) config.Config {
	cfg.Sessions = config.Sessions{Backend: "memory"}
	return cfg
}

// chatLoop reads lines from in until EOF, /quit or ctx is done.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, a *assistant.Assistant, sessionID string) error {
	fmt.Fprintln(out, "Samanta: ¿Qué querés saber de las noticias? (/add <url>, /history, /quit)")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/history":
			printHistory(ctx, out, a, sessionID)
		case line == "/add" || strings.HasPrefix(line, "/add "):
			addFromChat(ctx, out, a, sessionID, strings.TrimSpace(strings.TrimPrefix(line, "/add")))
		default:
			reply, err := a.Submit(ctx, sessionID, line)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Samanta: %s\n", reply.Text)
		}
	}
}

func addFromChat(ctx context.Context, out io.Writer, a *assistant.Assistant, sessionID, url string) {
	if url == "" {
		fmt.Fprintln(out, "Usage: /add <url>")
		return
	}
	article, err := a.AddArticle(ctx, sessionID, url)
	if err != nil {
		var ee *extractor.ExtractionError
		if errors.As(err, &ee) {
			fmt.Fprintf(out, "No se pudo obtener la noticia: %v\n", err)
			return
		}
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Noticia agregada: %s\n", article.Title)
}

func printHistory(ctx context.Context, out io.Writer, a *assistant.Assistant, sessionID string) {
	turns, err := a.Sessions().History(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if len(turns) == 0 {
		fmt.Fprintln(out, "(sin mensajes)")
		return
	}
	for _, turn := range turns {
		speaker := "Vos"
		if turn.Role == models.RoleAssistant {
			speaker = "Samanta"
		}
		fmt.Fprintf(out, "%s: %s\n", speaker, turn.Content)
	}
}
