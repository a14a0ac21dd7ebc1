package interview

import (
	"context"
	"time"

	"github.com/chadiek/interview-coach/internal/device"
	"github.com/chadiek/interview-coach/internal/transcript"
)

// Status is the persisted lifecycle of a Session.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Speaker identifies who produced a Turn.
type Speaker string

const (
	SpeakerRequester   Speaker = "requester"
	SpeakerInterviewer Speaker = "interviewer"
)

// Medium is how a Turn was delivered.
type Medium string

const (
	MediumVoice Medium = "voice"
	MediumText  Medium = "text"
)

// DefaultDifficulty is applied to sessions created without one.
const DefaultDifficulty = "medium"

// Session is one interview attempt.
type Session struct {
	ID              string     `json:"id"`
	RequesterID     string     `json:"requester_id"`
	PracticeOption  string     `json:"practice_option"`
	Topic           string     `json:"topic"`
	Interviewer     string     `json:"interviewer"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	PausedAt        *time.Time `json:"paused_at,omitempty"`
	ResumedAt       *time.Time `json:"resumed_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	QuestionCount   int        `json:"question_count"`
	Feedback        *string    `json:"feedback,omitempty"`
	Score           *float64   `json:"score,omitempty"`
	Tags            []string   `json:"tags"`
	Difficulty      string     `json:"difficulty"`
	Conversation    []Turn     `json:"conversation"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.CompletedAt = clonePtr(s.CompletedAt)
	out.PausedAt = clonePtr(s.PausedAt)
	out.ResumedAt = clonePtr(s.ResumedAt)
	out.DurationMinutes = clonePtr(s.DurationMinutes)
	out.Feedback = clonePtr(s.Feedback)
	out.Score = clonePtr(s.Score)
	if s.Tags != nil {
		out.Tags = make([]string, len(s.Tags))
		copy(out.Tags, s.Tags)
	}
	out.Conversation = make([]Turn, len(s.Conversation))
	for i, t := range s.Conversation {
		out.Conversation[i] = t.Clone()
	}
	return &out
}

// Turn is one utterance in a session's conversation.
type Turn struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Speaker   Speaker        `json:"speaker"`
	Medium    Medium         `json:"medium"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy with its own metadata map.
func (t Turn) Clone() Turn {
	if t.Metadata != nil {
		md := make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			md[k] = v
		}
		t.Metadata = md
	}
	return t
}

// StatusExtra carries the fields written alongside a status change.
// Zero fields are left untouched.
type StatusExtra struct {
	At              time.Time
	DurationMinutes *int
	Feedback        *string
	Score           *float64
}

// Context seeds the response generator.
type Context struct {
	Interviewer    string
	PracticeOption string
	Topic          string
	RequesterName  string
}

// Requester is the user driving the session.
type Requester struct {
	ID          string
	DisplayName string
}

// Completion is the optional outcome recorded when a session ends.
type Completion struct {
	Feedback *string
	Score    *float64
}

// Store persists sessions and their conversation.
type Store interface {
	Create(ctx context.Context, s *Session) (string, error)
	// Get returns nil, nil when the session does not exist.
	Get(ctx context.Context, id string) (*Session, error)
	AppendTurn(ctx context.Context, id string, t Turn) error
	SetStatus(ctx context.Context, id string, status Status, extra StatusExtra) error
}

// Devices hands out exclusive device streams.
type Devices interface {
	Acquire(ctx context.Context, kind device.Kind) (device.Stream, error)
	Release(s device.Stream) error
}

// Transcriber converts a finalized recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, blob device.AudioBlob, opts transcript.Options) (transcript.Result, error)
}

// Generator produces the interviewer's next utterance.
type Generator interface {
	NextUtterance(ctx context.Context, history []Turn, c Context) (string, error)
}

// Synthesizer plays text back to the requester and returns once playback finished.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Archive stores requester recordings. Optional.
type Archive interface {
	Save(ctx context.Context, sessionID, name string, blob device.AudioBlob) (string, error)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
