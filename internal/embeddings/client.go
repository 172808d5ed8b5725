package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v2"
	"golang.org/x/time/rate"
)

// Embedder turns text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds embeddings client configuration.
type Config struct {
	Model     string  // Model name (e.g., "text-embedding-3-small")
	RateLimit float64 // Requests per second, 0 disables pacing
}

// Client wraps the OpenAI embeddings API.
type Client struct {
	api     openai.Client
	model   string
	limiter *rate.Limiter
}

// New creates a new embeddings client on top of an OpenAI client.
func New(api openai.Client, config Config) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Client{
		api:     api,
		model:   config.Model,
		limiter: limiter,
	}, nil
}

// MaxInputChars limits input to stay within the model context window
// (8191 tokens for the text-embedding-3 family).
const MaxInputChars = 20000

// BatchSize is the number of inputs sent per embeddings request.
const BatchSize = 64

// Embed generates an embedding vector for the given text.
// Text exceeding MaxInputChars is truncated from the end.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.request(ctx, []string{truncate(text)})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for texts, preserving order.
// Inputs are sent in groups of BatchSize.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += BatchSize {
		end := min(start+BatchSize, len(texts))
		batch := make([]string, 0, end-start)
		for _, t := range texts[start:end] {
			batch = append(batch, truncate(t))
		}

		vectors, err := c.request(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		result = append(result, vectors...)
	}
	return result, nil
}

func (c *Client) request(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	slog.Debug("generating embeddings", "inputs", len(inputs), "model", c.model)

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))
	}

	vectors := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(inputs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxInputChars {
		return text
	}
	slog.Debug("truncating embedding input", "original_len", len(runes), "truncated_len", MaxInputChars)
	return string(runes[:MaxInputChars])
}

// Dimensions returns the embedding dimensions for common models.
func Dimensions(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "ai/embeddinggemma":
		return 768
	case "ai/snowflake-arctic-embed":
		return 1024
	case "ai/qwen3-embedding":
		return 2560
	default:
		return 1536
	}
}
