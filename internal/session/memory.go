package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mfenderov/samanta/pkg/models"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
	token     string
}

// Memory is a process-local Store. Sessions expire ttl after their last use;
// a zero ttl keeps them for the life of the process.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory creates an in-memory store.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *Memory) Create(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	e := &memoryEntry{session: Session{ID: NewID(), CreatedAt: m.now(), State: StateIdle}}
	m.touch(e)
	m.sessions[e.session.ID] = e
	return snapshot(e.session), nil
}

func (m *Memory) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return snapshot(e.session), nil
}

func (m *Memory) AppendTurn(_ context.Context, id string, role models.Role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.session.Turns = append(e.session.Turns, models.ChatTurn{Role: role, Content: text})
	return nil
}

func (m *Memory) History(_ context.Context, id string) ([]models.ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.session.Turns), nil
}

func (m *Memory) SetLastArticle(_ context.Context, id string, article models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.session.LastArticle = &article
	return nil
}

func (m *Memory) Begin(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	if e.session.State == StateProcessing {
		return "", ErrBusy
	}
	e.session.State = StateProcessing
	e.token = NewID()
	return e.token, nil
}

func (m *Memory) End(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if e.token != token {
		return nil
	}
	e.session.State = StateIdle
	e.token = ""
	return nil
}

// lookup returns a live entry and extends its lifetime. Callers hold mu.
func (m *Memory) lookup(id string) (*memoryEntry, error) {
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.ttl > 0 && m.now().After(e.expiresAt) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	m.touch(e)
	return e, nil
}

func (m *Memory) touch(e *memoryEntry) {
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
}

// sweep drops expired sessions. Callers hold mu.
func (m *Memory) sweep() {
	if m.ttl <= 0 {
		return
	}
	now := m.now()
	for id, e := range m.sessions {
		if now.After(e.expiresAt) {
			delete(m.sessions, id)
		}
	}
}

func snapshot(s Session) *Session {
	out := s
	out.Turns = slices.Clone(s.Turns)
	if s.LastArticle != nil {
		a := *s.LastArticle
		a.Authors = slices.Clone(a.Authors)
		out.LastArticle = &a
	}
	return &out
}
