// Package session keeps per-user chat history and the last added article,
// and guards each session against overlapping questions.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mfenderov/samanta/pkg/models"
)

var (
	// ErrBusy is returned when a question is submitted while another is being answered.
	ErrBusy = errors.New("session is processing a question")
	// ErrNotFound is returned for unknown or expired sessions.
	ErrNotFound = errors.New("session not found")
)

// State is the processing state of a session.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
)

// Session is a snapshot of one user's conversation.
type Session struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	Turns       []models.ChatTurn `json:"turns"`
	LastArticle *models.Article   `json:"last_article,omitempty"`
	State       State             `json:"state"`
}

// Store holds sessions. Implementations are safe for concurrent use.
type Store interface {
	// Create mints a new session with a random ID.
	Create(ctx context.Context) (*Session, error)
	// Get returns a snapshot of the session.
	Get(ctx context.Context, id string) (*Session, error)
	// AppendTurn adds a turn to the end of the session history.
	AppendTurn(ctx context.Context, id string, role models.Role, text string) error
	// History returns the turns in order, oldest first.
	History(ctx context.Context, id string) ([]models.ChatTurn, error)
	// SetLastArticle replaces the session's last added article.
	SetLastArticle(ctx context.Context, id string, article models.Article) error
	// Begin moves the session from Idle to Processing, or returns ErrBusy.
	// The returned token identifies this submission to End.
	Begin(ctx context.Context, id string) (string, error)
	// End moves the session back to Idle if token still holds it. A stale
	// token is a no-op.
	End(ctx context.Context, id, token string) error
}

// NewID returns a random session identifier.
func NewID() string {
	return uuid.NewString()
}
