package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mfenderov/samanta/internal/articles"
	"github.com/mfenderov/samanta/internal/assistant"
	"github.com/mfenderov/samanta/internal/extractor"
	"github.com/mfenderov/samanta/internal/rag"
	"github.com/mfenderov/samanta/internal/session"
	"github.com/mfenderov/samanta/pkg/models"
)

type stubExtractor struct {
	err error
}

func (s stubExtractor) Extract(_ context.Context, url string) (*models.Article, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Article{URL: url, Title: "Titular", Authors: []string{"Ana"}, Date: "2024-01-01", Content: "Cuerpo."}, nil
}

type stubAsker struct {
	answer *rag.Answer
	err    error
}

func (s stubAsker) Ask(_ context.Context, _ rag.Request) (*rag.Answer, error) {
	return s.answer, s.err
}

func newTestServer(t *testing.T, ex assistant.Extractor, asker assistant.Asker) (*Server, session.Store) {
	t.Helper()
	store, err := articles.NewFileStore(filepath.Join(t.TempDir(), "news_data.csv"))
	if err != nil {
		t.Fatal(err)
	}
	sessions := session.NewMemory(time.Hour)
	return New(assistant.New(ex, store, sessions, asker)), sessions
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return v
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[sessionResponse](t, rec).ID
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, stubExtractor{}, stubAsker{})
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestSubmitAndHistory(t *testing.T) {
	asker := stubAsker{answer: &rag.Answer{
		Text:   "Respuesta.",
		Query:  "¿Qué pasó?",
		Chunks: []models.Chunk{{ID: "c1", Content: "contexto"}},
	}}
	s, _ := newTestServer(t, stubExtractor{}, asker)
	id := createSession(t, s)

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"¿Qué pasó?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[submitResponse](t, rec)
	if resp.Answer != "Respuesta." || resp.Failed || len(resp.Chunks) != 1 {
		t.Errorf("submit response = %+v", resp)
	}

	rec = do(t, s, http.MethodGet, "/api/sessions/"+id+"/messages", "")
	history := decode[historyResponse](t, rec)
	want := []models.ChatTurn{
		{Role: models.RoleHuman, Content: "¿Qué pasó?"},
		{Role: models.RoleAssistant, Content: "Respuesta."},
	}
	if len(history.Messages) != len(want) {
		t.Fatalf("history = %+v, want %+v", history.Messages, want)
	}
	for i := range want {
		if history.Messages[i] != want[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, history.Messages[i], want[i])
		}
	}
}

func TestSubmit_PipelineFailureReturnsErrorReply(t *testing.T) {
	s, _ := newTestServer(t, stubExtractor{}, stubAsker{err: errors.New("model down")})
	id := createSession(t, s)

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"hola"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[submitResponse](t, rec)
	if !resp.Failed || resp.Answer != assistant.ErrorReply {
		t.Errorf("response = %+v", resp)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		extractErr error
		busy       bool
		method     string
		path       func(id string) string
		body       string
		wantStatus int
	}{
		{
			name:       "unknown session",
			method:     http.MethodGet,
			path:       func(string) string { return "/api/sessions/missing/messages" },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "empty question",
			method:     http.MethodPost,
			path:       func(id string) string { return "/api/sessions/" + id + "/messages" },
			body:       `{"text":"   "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "busy session",
			busy:       true,
			method:     http.MethodPost,
			path:       func(id string) string { return "/api/sessions/" + id + "/messages" },
			body:       `{"text":"hola"}`,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing url",
			method:     http.MethodPost,
			path:       func(id string) string { return "/api/sessions/" + id + "/articles" },
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "extraction failure",
			extractErr: &extractor.ExtractionError{URL: "https://example.com", StatusCode: 404},
			method:     http.MethodPost,
			path:       func(id string) string { return "/api/sessions/" + id + "/articles" },
			body:       `{"url":"https://example.com"}`,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "malformed body",
			method:     http.MethodPost,
			path:       func(id string) string { return "/api/sessions/" + id + "/messages" },
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sessions := newTestServer(t, stubExtractor{err: tt.extractErr}, stubAsker{answer: &rag.Answer{Text: "ok"}})
			id := createSession(t, s)
			if tt.busy {
				if _, err := sessions.Begin(context.Background(), id); err != nil {
					t.Fatal(err)
				}
			}

			rec := do(t, s, tt.method, tt.path(id), tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := decode[map[string]string](t, rec)
			if body["error"] == "" {
				t.Errorf("error body = %v, want an error message", body)
			}
		})
	}
}

func TestAddArticle_SetsLastArticle(t *testing.T) {
	s, _ := newTestServer(t, stubExtractor{}, stubAsker{})
	id := createSession(t, s)

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/articles", `{"url":"https://example.com/nota"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/sessions/"+id, "")
	sess := decode[sessionResponse](t, rec)
	if sess.LastArticle == nil || sess.LastArticle.URL != "https://example.com/nota" {
		t.Errorf("last article = %+v", sess.LastArticle)
	}
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, stubExtractor{}, stubAsker{answer: &rag.Answer{Text: "ok"}})
	id := createSession(t, s)
	do(t, s, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"hola"}`)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`samanta_questions_total{outcome="answered"} 1`,
		`samanta_http_requests_total{code="201",method="POST",route="/api/sessions"} 1`,
		"samanta_answer_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
