package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chadiek/interview-coach/internal/interview"
)

// Memory is an in-process session store. Sessions are copied in and out so
// callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*interview.Session
	now      func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*interview.Session), now: time.Now}
}

func (m *Memory) Create(ctx context.Context, s *interview.Session) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := m.sessions[id]; exists {
		return "", fmt.Errorf("store: session %s already exists", id)
	}
	m.sessions[id] = prepare(s, id, m.now())
	return id, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*interview.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *Memory) AppendTurn(ctx context.Context, id string, t interview.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Conversation = append(s.Conversation, t.Clone())
	if t.Speaker == interview.SpeakerInterviewer {
		s.QuestionCount++
	}
	s.UpdatedAt = m.now()
	return nil
}

func (m *Memory) SetStatus(ctx context.Context, id string, status interview.Status, extra interview.StatusExtra) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if extra.At.IsZero() {
		extra.At = m.now()
	}
	next := s.Clone()
	if err := applyStatus(next, status, extra); err != nil {
		return err
	}
	m.sessions[id] = next
	return nil
}

// ListByRequester returns a requester's sessions, newest first.
func (m *Memory) ListByRequester(ctx context.Context, requesterID string, limit int) ([]*interview.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []*interview.Session
	for _, s := range m.sessions {
		if s.RequesterID == requesterID {
			out = append(out, s.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
