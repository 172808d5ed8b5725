// Package assistant implements the two user actions of the news assistant:
// adding an article by URL and asking a question in a session.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mfenderov/samanta/internal/articles"
	"github.com/mfenderov/samanta/internal/events"
	"github.com/mfenderov/samanta/internal/rag"
	"github.com/mfenderov/samanta/internal/session"
	"github.com/mfenderov/samanta/pkg/models"
)

// ErrorReply is recorded as the assistant turn when answering fails.
const ErrorReply = "Ocurrió un error al procesar tu pregunta."

// ErrEmptyQuestion is returned for blank submissions.
var ErrEmptyQuestion = errors.New("question is empty")

// Extractor fetches and parses an article page.
type Extractor interface {
	Extract(ctx context.Context, url string) (*models.Article, error)
}

// Asker answers one question turn.
type Asker interface {
	Ask(ctx context.Context, req rag.Request) (*rag.Answer, error)
}

// Reply is the outcome of a submitted question.
type Reply struct {
	Text   string
	Answer *rag.Answer // nil when Err is set
	Err    error       // Pipeline failure behind an ErrorReply
}

// Assistant wires extraction, storage, sessions and the answer pipeline.
type Assistant struct {
	extractor Extractor
	articles  articles.Store
	sessions  session.Store
	pipeline  Asker
	added     chan<- events.ArticleAddedEvent
	logger    *slog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithArticleEvents publishes an event for every stored article.
func WithArticleEvents(ch chan<- events.ArticleAddedEvent) Option {
	return func(a *Assistant) {
		a.added = ch
	}
}

// WithLogger sets the assistant logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// New creates a new Assistant.
func New(extractor Extractor, store articles.Store, sessions session.Store, pipeline Asker, opts ...Option) *Assistant {
	a := &Assistant{
		extractor: extractor,
		articles:  store,
		sessions:  sessions,
		pipeline:  pipeline,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sessions returns the session store.
func (a *Assistant) Sessions() session.Store {
	return a.sessions
}

// AddArticle extracts the article at url, appends it to the store and makes
// it the session's last article. An empty sessionID only stores it.
// Extraction failures leave the store untouched.
func (a *Assistant) AddArticle(ctx context.Context, sessionID, url string) (*models.Article, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if sessionID != "" {
		if _, err := a.sessions.Get(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	article, err := a.extractor.Extract(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := a.articles.Append(ctx, *article); err != nil {
		return nil, fmt.Errorf("failed to store article: %w", err)
	}
	a.logger.Info("article added", "url", url, "title", article.Title, "session", sessionID)

	if sessionID != "" {
		if err := a.sessions.SetLastArticle(ctx, sessionID, *article); err != nil {
			return nil, err
		}
	}

	if a.added != nil {
		event := events.ArticleAddedEvent{
			URL:       url,
			Title:     article.Title,
			SessionID: sessionID,
			Timestamp: time.Now(),
		}
		select {
		case a.added <- event:
		case <-ctx.Done():
			return article, ctx.Err()
		}
	}

	return article, nil
}

// Submit answers text in the session. The question and the reply are both
// appended to the history, including when the pipeline fails, in which
// case the reply is ErrorReply and Reply.Err holds the cause. A session
// already answering a question returns session.ErrBusy.
func (a *Assistant) Submit(ctx context.Context, sessionID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}

	token, err := a.sessions.Begin(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := a.sessions.End(context.WithoutCancel(ctx), sessionID, token); err != nil {
			a.logger.Error("failed to release session", "session", sessionID, "error", err)
		}
	}()

	sess, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := a.sessions.AppendTurn(ctx, sessionID, models.RoleHuman, text); err != nil {
		return nil, err
	}

	reply := &Reply{}
	answer, err := a.pipeline.Ask(ctx, rag.Request{
		History:  sess.Turns,
		Question: text,
		Article:  sess.LastArticle,
	})
	if err != nil {
		a.logger.Error("failed to answer question", "session", sessionID, "error", err)
		reply.Text = ErrorReply
		reply.Err = err
	} else {
		reply.Text = answer.Text
		reply.Answer = answer
	}

	if err := a.sessions.AppendTurn(context.WithoutCancel(ctx), sessionID, models.RoleAssistant, reply.Text); err != nil {
		return nil, err
	}
	return reply, nil
}
