package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/samanta/internal/articles"
	"github.com/mfenderov/samanta/internal/assistant"
	"github.com/mfenderov/samanta/internal/chunker"
	"github.com/mfenderov/samanta/internal/config"
	"github.com/mfenderov/samanta/internal/elasticsearch"
	"github.com/mfenderov/samanta/internal/embeddings"
	"github.com/mfenderov/samanta/internal/events"
	"github.com/mfenderov/samanta/internal/extractor"
	"github.com/mfenderov/samanta/internal/indexer"
	"github.com/mfenderov/samanta/internal/llm"
	"github.com/mfenderov/samanta/internal/provider"
	"github.com/mfenderov/samanta/internal/qdrant"
	"github.com/mfenderov/samanta/internal/rag"
	"github.com/mfenderov/samanta/internal/session"
	"github.com/mfenderov/samanta/internal/vectorstore"
	"github.com/openai/openai-go/v2"
)

// Failed calls made while answering a user turn are not retried; the user
// gets the apology instead. Batch indexing runs out of band and may retry.
const (
	answerRetries = 0
	indexRetries  = 2
)

func newExtractor(cfg *config.Config) *extractor.Extractor {
	return extractor.New(extractor.Config{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.Scraper.Timeout,
	})
}

// newArticleStore returns the article store and a name for it in messages.
func newArticleStore(ctx context.Context, cfg *config.Config) (articles.Store, string, error) {
	switch cfg.Store.Backend {
	case "", "csv":
		store, err := articles.NewFileStore(cfg.Store.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open article store: %w", err)
		}
		return store, store.Path(), nil
	case "s3":
		s3 := cfg.Store.S3
		store, err := articles.NewS3Store(articles.S3Config{
			Endpoint:        s3.Endpoint,
			Bucket:          s3.Bucket,
			Key:             cfg.Store.Path,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			UseSSL:          s3.UseSSL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, "", fmt.Errorf("failed to ensure bucket: %w", err)
		}
		return store, fmt.Sprintf("s3://%s/%s", s3.Bucket, cfg.Store.Path), nil
	default:
		return nil, "", fmt.Errorf("unknown article store backend %q", cfg.Store.Backend)
	}
}

func newProvider(cfg *config.Config, retries int) (openai.Client, error) {
	if err := cfg.Validate(); err != nil {
		return openai.Client{}, err
	}
	return provider.NewClient(provider.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		SocketPath: cfg.OpenAI.SocketPath,
		MaxRetries: retries,
	})
}

func newEmbedder(api openai.Client, cfg *config.Config) (*embeddings.Client, error) {
	client, err := embeddings.New(api, embeddings.Config{
		Model:     cfg.Embeddings.Model,
		RateLimit: cfg.Embeddings.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}
	return client, nil
}

func newChatModel(api openai.Client, cfg *config.Config) (*llm.Client, error) {
	client, err := llm.New(api, llm.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}

// newVectorStore opens the configured backend, creating its collection if needed.
func newVectorStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	vs := cfg.VectorStore
	dims := embeddings.Dimensions(cfg.Embeddings.Model)

	switch vs.Backend {
	case "", "local":
		store, err := vectorstore.OpenLocal(vs.Path, vs.Collection)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
		return store, nil
	case "elasticsearch":
		client, err := elasticsearch.New(elasticsearch.Config{
			Addresses:  vs.Elasticsearch.Addresses,
			Index:      vs.Collection,
			Username:   vs.Elasticsearch.Username,
			Password:   vs.Elasticsearch.Password,
			Dimensions: dims,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ES client: %w", err)
		}
		if err := client.CreateIndex(ctx); err != nil {
			return nil, err
		}
		return client, nil
	case "qdrant":
		store, err := qdrant.New(vs.Qdrant.Address, vs.Collection, dims)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureCollection(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", vs.Backend)
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Sessions.Backend {
	case "", "memory":
		return session.NewMemory(cfg.Sessions.TTL), func() {}, nil
	case "redis":
		r := cfg.Sessions.Redis
		client, err := session.Connect(ctx, r.Addr, r.Password, r.DB)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedis(client, cfg.Sessions.TTL), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}

// app holds the components shared by the interactive commands.
type app struct {
	cfg       *config.Config
	extractor *extractor.Extractor
	articles  articles.Store
	source    string
	embedder  *embeddings.Client // Query embedding, no retries
	indexing  *embeddings.Client // Chunk embedding, retried
	vectors   vectorstore.Store
	retriever *vectorstore.Retriever
	pipeline  *rag.Pipeline
	sessions  session.Store
	closers   []func()
}

// newApp wires every component. withSessions is false for commands that
// never touch a session.
func newApp(ctx context.Context, cfg *config.Config, withSessions bool) (*app, error) {
	api, err := newProvider(cfg, answerRetries)
	if err != nil {
		return nil, err
	}
	indexAPI, err := newProvider(cfg, indexRetries)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, extractor: newExtractor(cfg)}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.articles, a.source, err = newArticleStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.embedder, err = newEmbedder(api, cfg)
	if err != nil {
		return nil, err
	}
	a.indexing, err = newEmbedder(indexAPI, cfg)
	if err != nil {
		return nil, err
	}
	model, err := newChatModel(api, cfg)
	if err != nil {
		return nil, err
	}
	a.vectors, err = newVectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := a.vectors.Close(); err != nil {
			slog.Warn("failed to close vector store", "error", err)
		}
	})

	a.retriever = vectorstore.NewRetriever(a.vectors, a.embedder, vectorstore.RetrieverOptions{
		TopK:   cfg.VectorStore.TopK,
		Hybrid: cfg.VectorStore.Hybrid,
	})
	a.pipeline = rag.New(model, a.retriever)

	if withSessions {
		sessions, closeSessions, err := newSessionStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.sessions = sessions
		a.closers = append(a.closers, closeSessions)
	}

	ok = true
	return a, nil
}

func (a *app) newIndexer() (*indexer.Indexer, error) {
	splitter, err := chunker.New(a.cfg.Chunking.Size, a.cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	return indexer.New(a.articles, a.source, splitter, a.indexing, a.vectors), nil
}

func (a *app) newAssistant(opts ...assistant.Option) *assistant.Assistant {
	return assistant.New(a.extractor, a.articles, a.sessions, a.pipeline, opts...)
}

// startIndexWorker runs an index worker fed by the returned channel and
// passes every finished run to report. The returned stop function closes
// the channel and waits for the worker.
func (a *app) startIndexWorker(ctx context.Context, report func(events.IndexCompleteEvent)) (chan<- events.ArticleAddedEvent, func(), error) {
	ix, err := a.newIndexer()
	if err != nil {
		return nil, nil, err
	}

	added := make(chan events.ArticleAddedEvent, 16)
	done := make(chan events.IndexCompleteEvent)
	go ix.Run(ctx, added, done)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for event := range done {
			report(event)
		}
	}()

	stop := func() {
		close(added)
		<-finished
	}
	return added, stop, nil
}

// Close releases every opened backend.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
