// Package provider builds OpenAI-compatible API clients for the chat and
// embedding models, either against a hosted endpoint or a local Docker
// Model Runner listening on a unix socket.
package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// SocketBaseURL is the OpenAI-compatible path exposed by Docker Model Runner.
const SocketBaseURL = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1/"

// Config holds model provider connection settings.
type Config struct {
	APIKey     string
	BaseURL    string // Optional OpenAI-compatible endpoint
	SocketPath string // Unix socket for Docker Model Runner
	MaxRetries int
}

// NewClient creates an OpenAI client for the configured provider.
func NewClient(config Config) (openai.Client, error) {
	if config.APIKey == "" && config.SocketPath == "" && config.BaseURL == "" {
		return openai.Client{}, fmt.Errorf("api key, base url or socket path is required")
	}

	opts := []option.RequestOption{option.WithMaxRetries(config.MaxRetries)}
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}

	switch {
	case config.SocketPath != "":
		transport := &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", config.SocketPath)
			},
		}
		opts = append(opts,
			option.WithHTTPClient(&http.Client{Transport: transport}),
			option.WithBaseURL(SocketBaseURL),
		)
	case config.BaseURL != "":
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return openai.NewClient(opts...), nil
}
