// Package rag answers questions about stored news with a two-step
// retrieval pipeline: the question is first rewritten into a standalone one
// using the conversation so far, then the closest chunks are retrieved and
// passed with the history to the chat model.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mfenderov/samanta/internal/llm"
	"github.com/mfenderov/samanta/pkg/models"
)

// Retriever returns the chunks most relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.Chunk, error)
}

// Request is one user turn.
type Request struct {
	History  []models.ChatTurn // Prior turns, oldest first, excluding Question
	Question string
	Article  *models.Article // Last article added in the session, if any
}

// Answer is the pipeline output for one turn.
type Answer struct {
	Text     string
	Query    string         // Standalone question used for retrieval
	Chunks   []models.Chunk // Retrieved context
	Fallback bool           // True when NoAnswer was returned without a model call
}

// Pipeline runs reformulation, retrieval and answer generation.
type Pipeline struct {
	model     llm.Completer
	retriever Retriever
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline.
func New(model llm.Completer, retriever Retriever, opts ...Option) *Pipeline {
	p := &Pipeline{
		model:     model,
		retriever: retriever,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Input builds the text sent for a question: the rendered article, if any,
// followed by a blank line and the question.
func Input(question string, article *models.Article) string {
	if article == nil {
		return question
	}
	return article.Render() + "\n\n" + question
}

// Ask answers a question. Errors from the model or the retriever are
// returned as-is; the caller decides what the user sees.
func (p *Pipeline) Ask(ctx context.Context, req Request) (*Answer, error) {
	input := Input(req.Question, req.Article)

	query, err := p.Reformulate(ctx, req.History, input)
	if err != nil {
		return nil, err
	}

	chunks, err := p.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	p.logger.Debug("retrieved context", "query", query, "chunks", len(chunks))

	answer := &Answer{Query: query, Chunks: chunks}

	if len(chunks) == 0 && len(req.History) == 0 && req.Article == nil {
		answer.Text = NoAnswer
		answer.Fallback = true
		return answer, nil
	}

	messages := make([]llm.Message, 0, len(req.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: answerPrompt + joinChunks(chunks)})
	messages = append(messages, historyMessages(req.History)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	text, err := p.model.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	answer.Text = text
	return answer, nil
}

// Reformulate rewrites input into a standalone question given the history.
// With no history the input is already standalone and returned unchanged.
func (p *Pipeline) Reformulate(ctx context.Context, history []models.ChatTurn, input string) (string, error) {
	if len(history) == 0 {
		return input, nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: reformulatePrompt})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	query, err := p.model.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to reformulate question: %w", err)
	}
	if query == "" {
		return input, nil
	}
	p.logger.Debug("reformulated question", "input", input, "query", query)
	return query, nil
}

func historyMessages(history []models.ChatTurn) []llm.Message {
	out := make([]llm.Message, len(history))
	for i, turn := range history {
		role := llm.RoleUser
		if turn.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		out[i] = llm.Message{Role: role, Content: turn.Content}
	}
	return out
}

func joinChunks(chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, contextSeparator)
}
