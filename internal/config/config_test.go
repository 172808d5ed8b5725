package config

import (
	"errors"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Chunking.Size != 500 || cfg.Chunking.Overlap != 50 {
		t.Errorf("chunking = %+v, want size 500 overlap 50", cfg.Chunking)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("LLM.Model = %q, want gpt-4o", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("LLM.Temperature = %v, want 0", cfg.LLM.Temperature)
	}
	if cfg.VectorStore.Backend != "local" {
		t.Errorf("VectorStore.Backend = %q, want local", cfg.VectorStore.Backend)
	}
	if cfg.Store.Path != "news_data.csv" {
		t.Errorf("Store.Path = %q, want news_data.csv", cfg.Store.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "missing key",
			mutate:  func(c *Config) {},
			wantErr: ErrMissingCredential,
		},
		{
			name:   "api key set",
			mutate: func(c *Config) { c.OpenAI.APIKey = "sk-test" },
		},
		{
			name:   "socket path without key",
			mutate: func(c *Config) { c.OpenAI.SocketPath = "/tmp/docker.sock" },
		},
		{
			name:   "base url without key",
			mutate: func(c *Config) { c.OpenAI.BaseURL = "http://localhost:11434/v1/" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_OverlapTooLarge(t *testing.T) {
	cfg := Defaults()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Chunking.Overlap = cfg.Chunking.Size

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject overlap >= size")
	}
}
