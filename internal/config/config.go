package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingCredential is returned when no model provider credential is configured.
var ErrMissingCredential = errors.New("OPENAI_API_KEY not set: export it or add it to the .env file")

// Config holds all application configuration.
type Config struct {
	OpenAI      OpenAI      `mapstructure:"openai"`
	LLM         LLM         `mapstructure:"llm"`
	Embeddings  Embeddings  `mapstructure:"embeddings"`
	Scraper     Scraper     `mapstructure:"scraper"`
	Store       Store       `mapstructure:"store"`
	Chunking    Chunking    `mapstructure:"chunking"`
	VectorStore VectorStore `mapstructure:"vector_store"`
	Sessions    Sessions    `mapstructure:"sessions"`
	Server      Server      `mapstructure:"server"`
	MCP         MCP         `mapstructure:"mcp"`
}

// OpenAI holds the model provider connection.
type OpenAI struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`    // Optional OpenAI-compatible endpoint
	SocketPath string `mapstructure:"socket_path"` // Unix socket for Docker Model Runner
}

// LLM holds chat model configuration used for reformulation and answers.
type LLM struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

// Embeddings holds embedding model configuration.
type Embeddings struct {
	Model     string  `mapstructure:"model"`
	RateLimit float64 `mapstructure:"rate_limit"` // Requests per second, 0 disables pacing
}

// Scraper holds article fetching configuration.
type Scraper struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Store holds article store configuration.
type Store struct {
	Backend string  `mapstructure:"backend"` // "csv" or "s3"
	Path    string  `mapstructure:"path"`    // CSV file path, or object key for s3
	S3      S3Store `mapstructure:"s3"`
}

// S3Store holds S3/MinIO configuration for the article store.
type S3Store struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Chunking holds text splitter configuration.
type Chunking struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// VectorStore selects and configures the chunk vector store.
type VectorStore struct {
	Backend       string        `mapstructure:"backend"` // "local", "elasticsearch" or "qdrant"
	Path          string        `mapstructure:"path"`    // Directory for the local backend
	Collection    string        `mapstructure:"collection"`
	TopK          int           `mapstructure:"top_k"`
	Hybrid        bool          `mapstructure:"hybrid"` // Fuse keyword matches into vector results
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Qdrant        Qdrant        `mapstructure:"qdrant"`
}

// Elasticsearch holds ES connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Qdrant holds Qdrant gRPC connection configuration.
type Qdrant struct {
	Address string `mapstructure:"address"`
}

// Sessions holds chat session storage configuration.
type Sessions struct {
	Backend string        `mapstructure:"backend"` // "memory" or "redis"
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   Redis         `mapstructure:"redis"`
}

// Redis holds Redis connection configuration.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Server holds HTTP server configuration.
type Server struct {
	Addr         string `mapstructure:"addr"`
	ReindexOnAdd bool   `mapstructure:"reindex_on_add"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		LLM: LLM{
			Model:       "gpt-4o",
			Temperature: 0,
		},
		Embeddings: Embeddings{
			Model: "text-embedding-3-small",
		},
		Scraper: Scraper{
			Timeout:   30 * time.Second,
			UserAgent: "samanta/1.0",
		},
		Store: Store{
			Backend: "csv",
			Path:    "news_data.csv",
			S3: S3Store{
				Endpoint:        "localhost:9002",
				Bucket:          "samanta",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
		},
		Chunking: Chunking{
			Size:    500,
			Overlap: 50,
		},
		VectorStore: VectorStore{
			Backend:    "local",
			Path:       "./vector_db",
			Collection: "news",
			TopK:       4,
			Elasticsearch: Elasticsearch{
				Addresses: []string{"http://localhost:9200"},
			},
			Qdrant: Qdrant{
				Address: "localhost:6334",
			},
		},
		Sessions: Sessions{
			Backend: "memory",
			TTL:     24 * time.Hour,
			Redis: Redis{
				Addr: "localhost:6379",
			},
		},
		Server: Server{
			Addr: ":8080",
		},
		MCP: MCP{
			Name:    "samanta",
			Version: "1.0.0",
		},
	}
}

// Validate checks that the model provider is reachable with the given settings.
// A key is not needed when talking to a local model runner over a unix socket
// or to a self-hosted OpenAI-compatible base URL.
func (c Config) Validate() error {
	if c.OpenAI.APIKey == "" && c.OpenAI.SocketPath == "" && c.OpenAI.BaseURL == "" {
		return ErrMissingCredential
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", c.Chunking.Overlap, c.Chunking.Size)
	}
	return nil
}
