package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mfenderov/samanta/internal/provider"
)

type chatRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   int64    `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 0,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func newTestClient(t *testing.T, config Config, handler func(req chatRequest) any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(handler(req))
	}))
	t.Cleanup(srv.Close)

	api, err := provider.NewClient(provider.Config{APIKey: "test", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("provider.NewClient() error = %v", err)
	}
	client, err := New(api, config)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	api, _ := provider.NewClient(provider.Config{APIKey: "test"})

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"empty model", Config{}, true},
		{"negative temperature", Config{Model: "gpt-4o", Temperature: -1}, true},
		{"valid", Config{Model: "gpt-4o"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(api, tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestComplete_SendsRolesAndTemperature(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, Config{Model: "gpt-4o", MaxTokens: 100}, func(req chatRequest) any {
		got = req
		return chatResponse("  Hola  ")
	})

	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if reply != "Hola" {
		t.Errorf("Complete() = %q, want %q", reply, "Hola")
	}
	if got.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", got.Model)
	}
	if got.Temperature == nil || *got.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", got.Temperature)
	}
	if got.MaxTokens != 100 {
		t.Errorf("max_tokens = %d, want 100", got.MaxTokens)
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(got.Messages) != len(wantRoles) {
		t.Fatalf("sent %d messages, want %d", len(got.Messages), len(wantRoles))
	}
	for i, role := range wantRoles {
		if got.Messages[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, got.Messages[i].Role, role)
		}
	}
	if got.Messages[2].Content != "a1" {
		t.Errorf("message 2 content = %q, want a1", got.Messages[2].Content)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	client := newTestClient(t, Config{Model: "gpt-4o"}, func(chatRequest) any {
		resp := chatResponse("")
		resp["choices"] = []any{}
		return resp
	})

	if _, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}}); err == nil {
		t.Error("Complete() expected error for empty choices")
	}
}

func TestComplete_NoMessages(t *testing.T) {
	client := newTestClient(t, Config{Model: "gpt-4o"}, func(chatRequest) any {
		t.Error("server should not be called")
		return nil
	})

	if _, err := client.Complete(context.Background(), nil); err == nil {
		t.Error("Complete() expected error for no messages")
	}
}

func TestComplete_ServerErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	api, err := provider.NewClient(provider.Config{APIKey: "test", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	client, err := New(api, Config{Model: "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "q"}}); err == nil {
		t.Fatal("Complete() expected error for 500 response")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server received %d requests, want 1", got)
	}
}
