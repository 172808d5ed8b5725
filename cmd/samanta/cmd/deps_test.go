package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfenderov/samanta/internal/config"
	"github.com/mfenderov/samanta/internal/llm"
	"github.com/mfenderov/samanta/internal/session"
)

func TestChatModel_FailedCallIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Defaults()
	cfg.OpenAI.APIKey = "test"
	cfg.OpenAI.BaseURL = srv.URL + "/"

	api, err := newProvider(&cfg, answerRetries)
	if err != nil {
		t.Fatalf("newProvider() error = %v", err)
	}
	model, err := newChatModel(api, &cfg)
	if err != nil {
		t.Fatalf("newChatModel() error = %v", err)
	}

	if _, err := model.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}}); err == nil {
		t.Fatal("Complete() expected error for 500 response")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server received %d requests, want 1", got)
	}
}

func TestChatConfig_SessionLivesForTheProcess(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sessions.Backend = "redis"
	cfg.Sessions.TTL = time.Hour

	chat := chatConfig(cfg)
	if chat.Sessions.Backend != "memory" || chat.Sessions.TTL != 0 {
		t.Errorf("chat sessions = %+v, want memory backend without ttl", chat.Sessions)
	}

	store, closeStore, err := newSessionStore(context.Background(), &chat)
	if err != nil {
		t.Fatalf("newSessionStore() error = %v", err)
	}
	defer closeStore()
	if _, ok := store.(*session.Memory); !ok {
		t.Errorf("store = %T, want *session.Memory", store)
	}
}
