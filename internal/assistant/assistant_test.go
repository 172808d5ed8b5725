package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mfenderov/samanta/internal/articles"
	"github.com/mfenderov/samanta/internal/events"
	"github.com/mfenderov/samanta/internal/extractor"
	"github.com/mfenderov/samanta/internal/rag"
	"github.com/mfenderov/samanta/internal/session"
	"github.com/mfenderov/samanta/pkg/models"
)

type fakeExtractor struct {
	article models.Article
	err     error
}

func (f fakeExtractor) Extract(_ context.Context, url string) (*models.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := f.article
	a.URL = url
	return &a, nil
}

type fakeAsker struct {
	requests []rag.Request
	reply    string
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeAsker) Ask(ctx context.Context, req rag.Request) (*rag.Answer, error) {
	f.requests = append(f.requests, req)
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &rag.Answer{Text: f.reply, Query: req.Question}, nil
}

func newTestAssistant(t *testing.T, ex Extractor, asker Asker, opts ...Option) (*Assistant, *articles.FileStore) {
	t.Helper()
	store, err := articles.NewFileStore(filepath.Join(t.TempDir(), "news_data.csv"))
	if err != nil {
		t.Fatal(err)
	}
	return New(ex, store, session.NewMemory(time.Hour), asker, opts...), store
}

func sampleArticle() models.Article {
	return models.Article{Title: "X", Authors: []string{"Y"}, Date: "2024-01-01", Content: "Z"}
}

func TestAddArticle_StoresAndSetsLastArticle(t *testing.T) {
	a, store := newTestAssistant(t, fakeExtractor{article: sampleArticle()}, &fakeAsker{})
	ctx := context.Background()
	sess, _ := a.Sessions().Create(ctx)

	article, err := a.AddArticle(ctx, sess.ID, "https://example.com/a")
	if err != nil {
		t.Fatalf("AddArticle() error = %v", err)
	}
	if article.Title != "X" || article.URL != "https://example.com/a" {
		t.Errorf("AddArticle() = %+v", article)
	}

	table, _ := store.Load(ctx)
	if len(table.Rows) != 1 || table.Rows[0][models.ColumnURL] != "https://example.com/a" {
		t.Errorf("stored rows = %v", table.Rows)
	}

	got, _ := a.Sessions().Get(ctx, sess.ID)
	if got.LastArticle == nil || got.LastArticle.Title != "X" {
		t.Errorf("LastArticle = %+v", got.LastArticle)
	}
}

func TestAddArticle_ExtractionErrorStoresNothing(t *testing.T) {
	extractErr := &extractor.ExtractionError{URL: "https://example.com/a", StatusCode: 404}
	a, store := newTestAssistant(t, fakeExtractor{err: extractErr}, &fakeAsker{})
	ctx := context.Background()

	_, err := a.AddArticle(ctx, "", "https://example.com/a")

	var ee *extractor.ExtractionError
	if !errors.As(err, &ee) || ee.StatusCode != 404 {
		t.Fatalf("AddArticle() error = %v, want ExtractionError 404", err)
	}
	table, _ := store.Load(ctx)
	if len(table.Rows) != 0 {
		t.Errorf("store has %d rows, want 0", len(table.Rows))
	}
}

func TestAddArticle_PublishesEvent(t *testing.T) {
	added := make(chan events.ArticleAddedEvent, 1)
	a, _ := newTestAssistant(t, fakeExtractor{article: sampleArticle()}, &fakeAsker{}, WithArticleEvents(added))

	if _, err := a.AddArticle(context.Background(), "", "https://example.com/a"); err != nil {
		t.Fatalf("AddArticle() error = %v", err)
	}

	select {
	case e := <-added:
		if e.URL != "https://example.com/a" || e.Title != "X" {
			t.Errorf("event = %+v", e)
		}
	default:
		t.Error("no ArticleAddedEvent published")
	}
}

func TestAddArticle_UnknownSession(t *testing.T) {
	a, _ := newTestAssistant(t, fakeExtractor{article: sampleArticle()}, &fakeAsker{})

	_, err := a.AddArticle(context.Background(), "missing", "https://example.com/a")
	if !errors.Is(err, session.ErrNotFound) {
		t.Errorf("AddArticle() error = %v, want ErrNotFound", err)
	}
}

func TestSubmit_AppendsQuestionAndAnswer(t *testing.T) {
	asker := &fakeAsker{reply: "El alcalde."}
	a, _ := newTestAssistant(t, fakeExtractor{article: sampleArticle()}, asker)
	ctx := context.Background()
	sess, _ := a.Sessions().Create(ctx)

	reply, err := a.Submit(ctx, sess.ID, "¿Quién?")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if reply.Text != "El alcalde." || reply.Err != nil {
		t.Errorf("Submit() = %+v", reply)
	}

	history, _ := a.Sessions().History(ctx, sess.ID)
	want := []models.ChatTurn{
		{Role: models.RoleHuman, Content: "¿Quién?"},
		{Role: models.RoleAssistant, Content: "El alcalde."},
	}
	if len(history) != 2 || history[0] != want[0] || history[1] != want[1] {
		t.Errorf("history = %+v, want %+v", history, want)
	}

	if len(asker.requests[0].History) != 0 {
		t.Errorf("first request carried %d history turns, want 0", len(asker.requests[0].History))
	}
}

func TestSubmit_PassesPriorTurnsAndArticle(t *testing.T) {
	asker := &fakeAsker{reply: "ok"}
	a, _ := newTestAssistant(t, fakeExtractor{article: sampleArticle()}, asker)
	ctx := context.Background()
	sess, _ := a.Sessions().Create(ctx)

	a.AddArticle(ctx, sess.ID, "https://example.com/a")
	a.Submit(ctx, sess.ID, "primera")
	a.Submit(ctx, sess.ID, "segunda")

	req := asker.requests[1]
	if len(req.History) != 2 || req.History[0].Content != "primera" || req.History[1].Content != "ok" {
		t.Errorf("second request history = %+v", req.History)
	}
	if req.Question != "segunda" {
		t.Errorf("Question = %q", req.Question)
	}
	if req.Article == nil || req.Article.URL != "https://example.com/a" {
		t.Errorf("Article = %+v", req.Article)
	}
}

func TestSubmit_PipelineErrorRecordsApology(t *testing.T) {
	wantErr := errors.New("model unavailable")
	a, _ := newTestAssistant(t, fakeExtractor{}, &fakeAsker{err: wantErr})
	ctx := context.Background()
	sess, _ := a.Sessions().Create(ctx)

	reply, err := a.Submit(ctx, sess.ID, "¿Qué pasó?")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if reply.Text != ErrorReply || !errors.Is(reply.Err, wantErr) {
		t.Errorf("Submit() = %+v", reply)
	}

	history, _ := a.Sessions().History(ctx, sess.ID)
	if len(history) != 2 || history[1].Content != ErrorReply || history[1].Role != models.RoleAssistant {
		t.Errorf("history = %+v", history)
	}

	got, _ := a.Sessions().Get(ctx, sess.ID)
	if got.State != session.StateIdle {
		t.Errorf("state after failure = %s, want idle", got.State)
	}
}

func TestSubmit_BusySessionRejected(t *testing.T) {
	asker := &fakeAsker{reply: "ok", block: make(chan struct{}), started: make(chan struct{})}
	a, _ := newTestAssistant(t, fakeExtractor{}, asker)
	ctx := context.Background()
	sess, _ := a.Sessions().Create(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := a.Submit(ctx, sess.ID, "primera")
		done <- err
	}()
	<-asker.started

	if _, err := a.Submit(ctx, sess.ID, "segunda"); !errors.Is(err, session.ErrBusy) {
		t.Errorf("concurrent Submit() error = %v, want ErrBusy", err)
	}

	close(asker.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	history, _ := a.Sessions().History(ctx, sess.ID)
	if len(history) != 2 {
		t.Errorf("history has %d turns, want 2 (rejected question not recorded)", len(history))
	}
}

func TestSubmit_EmptyQuestion(t *testing.T) {
	a, _ := newTestAssistant(t, fakeExtractor{}, &fakeAsker{})
	sess, _ := a.Sessions().Create(context.Background())

	if _, err := a.Submit(context.Background(), sess.ID, "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("Submit() error = %v, want ErrEmptyQuestion", err)
	}
}
