// Package store persists interview sessions and their conversation.
package store

import (
	"errors"
	"time"

	"github.com/chadiek/interview-coach/internal/interview"
)

var (
	// ErrNotFound is returned by writes that target a missing session.
	ErrNotFound = errors.New("store: session not found")
	// ErrCompleted is returned when a completed session would change status.
	ErrCompleted = errors.New("store: session already completed")
)

// DefaultListLimit caps ListByRequester when no limit is given.
const DefaultListLimit = 20

// prepare fills the fields a new session gets on creation.
func prepare(s *interview.Session, id string, now time.Time) *interview.Session {
	out := s.Clone()
	out.ID = id
	if out.Status == "" {
		out.Status = interview.StatusActive
	}
	if out.Difficulty == "" {
		out.Difficulty = interview.DefaultDifficulty
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	return out
}

// applyStatus validates a status change and writes it onto s.
func applyStatus(s *interview.Session, status interview.Status, extra interview.StatusExtra) error {
	if s.Status == interview.StatusCompleted {
		return ErrCompleted
	}
	at := extra.At
	s.Status = status
	s.UpdatedAt = at
	switch status {
	case interview.StatusPaused:
		s.PausedAt = &at
	case interview.StatusActive:
		s.ResumedAt = &at
	case interview.StatusCompleted:
		s.CompletedAt = &at
		s.DurationMinutes = copyOf(extra.DurationMinutes)
		s.Feedback = copyOf(extra.Feedback)
		s.Score = copyOf(extra.Score)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func copyOf[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
