package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v2"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Completer produces a chat completion for a message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Config holds LLM client configuration.
type Config struct {
	Model       string  // Model name (e.g., "gpt-4o")
	Temperature float64 // Sampling temperature, 0 for deterministic output
	MaxTokens   int64   // Limit response length, 0 for no limit
}

// Client wraps the OpenAI chat completions API.
type Client struct {
	api    openai.Client
	config Config
}

// New creates a new LLM client on top of an OpenAI client.
func New(api openai.Client, config Config) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be in [0, 2], got %v", config.Temperature)
	}
	return &Client{api: api, config: config}, nil
}

// Complete sends messages to the model and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("at least one message is required")
	}

	params := openai.ChatCompletionNewParams{
		Model:       c.config.Model,
		Messages:    toParams(messages),
		Temperature: openai.Float(c.config.Temperature),
	}
	if c.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(c.config.MaxTokens)
	}

	slog.Debug("chat completion", "model", c.config.Model, "messages", len(messages))

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}
