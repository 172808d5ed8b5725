// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfenderov/samanta/internal/assistant"
	"github.com/mfenderov/samanta/internal/extractor"
	"github.com/mfenderov/samanta/internal/session"
	"github.com/mfenderov/samanta/pkg/models"
)

// Server is the HTTP surface of the assistant.
type Server struct {
	echo      *echo.Echo
	assistant *assistant.Assistant
	metrics   *Metrics
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server with its own metrics registry.
func New(a *assistant.Assistant, opts ...Option) *Server {
	s := &Server{
		assistant: a,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = NewMetrics(registry)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.Middleware())

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)
	api.POST("/sessions/:id/articles", s.addArticle)
	api.POST("/sessions/:id/messages", s.submit)
	api.GET("/sessions/:id/messages", s.history)

	s.echo = e
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

type sessionResponse struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	State       session.State     `json:"state"`
	LastArticle *models.Article   `json:"last_article,omitempty"`
	Messages    []models.ChatTurn `json:"messages"`
}

func (s *Server) createSession(c echo.Context) error {
	sess, err := s.assistant.Sessions().Create(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		State:     sess.State,
		Messages:  []models.ChatTurn{},
	})
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.assistant.Sessions().Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{
		ID:          sess.ID,
		CreatedAt:   sess.CreatedAt,
		State:       sess.State,
		LastArticle: sess.LastArticle,
		Messages:    nonNil(sess.Turns),
	})
}

type addArticleRequest struct {
	URL string `json:"url"`
}

func (s *Server) addArticle(c echo.Context) error {
	var req addArticleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}

	article, err := s.assistant.AddArticle(c.Request().Context(), c.Param("id"), req.URL)
	if err != nil {
		s.metrics.articles.WithLabelValues("failed").Inc()
		return err
	}
	s.metrics.articles.WithLabelValues("stored").Inc()
	return c.JSON(http.StatusCreated, article)
}

type submitRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	Answer   string         `json:"answer"`
	Query    string         `json:"query,omitempty"`
	Chunks   []models.Chunk `json:"chunks,omitempty"`
	Failed   bool           `json:"failed"`
	Fallback bool           `json:"fallback"`
}

func (s *Server) submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	start := time.Now()
	reply, err := s.assistant.Submit(c.Request().Context(), c.Param("id"), req.Text)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			s.metrics.questions.WithLabelValues("busy").Inc()
		}
		return err
	}
	s.metrics.answer.Observe(time.Since(start).Seconds())

	resp := submitResponse{Answer: reply.Text, Failed: reply.Err != nil}
	switch {
	case reply.Err != nil:
		s.metrics.questions.WithLabelValues("failed").Inc()
	case reply.Answer.Fallback:
		resp.Fallback = true
		resp.Query = reply.Answer.Query
		s.metrics.questions.WithLabelValues("fallback").Inc()
	default:
		resp.Query = reply.Answer.Query
		resp.Chunks = reply.Answer.Chunks
		s.metrics.questions.WithLabelValues("answered").Inc()
	}
	return c.JSON(http.StatusOK, resp)
}

type historyResponse struct {
	Messages []models.ChatTurn `json:"messages"`
}

func (s *Server) history(c echo.Context) error {
	turns, err := s.assistant.Sessions().History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, historyResponse{Messages: nonNil(turns)})
}

// handleError maps domain errors to status codes and writes a JSON body.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()

	var he *echo.HTTPError
	var ee *extractor.ExtractionError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	case errors.Is(err, session.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		code = http.StatusConflict
	case errors.Is(err, assistant.ErrEmptyQuestion):
		code = http.StatusBadRequest
	case errors.As(err, &ee):
		code = http.StatusBadGateway
	}

	req := c.Request()
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", code, "method", req.Method, "path", req.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "status", code, "method", req.Method, "path", req.URL.Path, "error", err)
	}

	if !c.Response().Committed {
		if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
			s.logger.Error("failed to write error response", "error", err)
		}
	}
}

func nonNil(turns []models.ChatTurn) []models.ChatTurn {
	if turns == nil {
		return []models.ChatTurn{}
	}
	return turns
}
