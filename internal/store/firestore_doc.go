package store

import (
	"fmt"
	"time"

	"github.com/chadiek/interview-coach/internal/interview"
)

// Field names shared with the web client's discussionRooms documents.
const (
	fieldUserID         = "userId"
	fieldConversation   = "conversation"
	fieldStatus         = "status"
	fieldCreatedAt      = "createdAt"
	fieldUpdatedAt      = "updatedAt"
	fieldCompletedAt    = "completedAt"
	fieldPausedAt       = "pausedAt"
	fieldResumedAt      = "resumedAt"
	fieldDuration       = "duration"
	fieldTotalQuestions = "totalQuestions"
	fieldFeedback       = "feedback"
	fieldScore          = "score"
	fieldIsCompleted    = "isCompleted"
)

// senderUser is how the web client labels the requester's messages.
const senderUser = "user"

// sessionDoc is the stored shape of a session. Timestamps are ISO-8601
// strings so documents written by either side sort and parse the same way.
type sessionDoc struct {
	UserID          string    `firestore:"userId"`
	PracticeOption  string    `firestore:"practiceOption"`
	Topic           string    `firestore:"topic"`
	InterviewerName string    `firestore:"interviewerName"`
	Conversation    []turnDoc `firestore:"conversation"`
	Status          string    `firestore:"status"`
	CreatedAt       string    `firestore:"createdAt"`
	UpdatedAt       string    `firestore:"updatedAt"`
	CompletedAt     string    `firestore:"completedAt,omitempty"`
	PausedAt        string    `firestore:"pausedAt,omitempty"`
	ResumedAt       string    `firestore:"resumedAt,omitempty"`
	Duration        int       `firestore:"duration"`
	TotalQuestions  int       `firestore:"totalQuestions"`
	Feedback        *string   `firestore:"feedback"`
	Score           *float64  `firestore:"score"`
	Difficulty      string    `firestore:"difficulty"`
	Tags            []string  `firestore:"tags"`
	IsCompleted     bool      `firestore:"isCompleted"`
}

type turnDoc struct {
	ID        string         `firestore:"id"`
	Content   string         `firestore:"content"`
	Sender    string         `firestore:"sender"`
	Timestamp string         `firestore:"timestamp"`
	Type      string         `firestore:"type"`
	Metadata  map[string]any `firestore:"metadata"`
}

func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func isoTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return isoTime(*t)
}

func parseISO(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", field, err)
	}
	return t, nil
}

func parseISOPtr(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := parseISO(field, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func sessionToDoc(s *interview.Session) sessionDoc {
	d := sessionDoc{
		UserID:          s.RequesterID,
		PracticeOption:  s.PracticeOption,
		Topic:           s.Topic,
		InterviewerName: s.Interviewer,
		Conversation:    make([]turnDoc, 0, len(s.Conversation)),
		Status:          string(s.Status),
		CreatedAt:       isoTime(s.CreatedAt),
		UpdatedAt:       isoTime(s.UpdatedAt),
		CompletedAt:     isoTimePtr(s.CompletedAt),
		PausedAt:        isoTimePtr(s.PausedAt),
		ResumedAt:       isoTimePtr(s.ResumedAt),
		TotalQuestions:  s.QuestionCount,
		Feedback:        s.Feedback,
		Score:           s.Score,
		Difficulty:      s.Difficulty,
		Tags:            s.Tags,
		IsCompleted:     s.Status == interview.StatusCompleted,
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if s.DurationMinutes != nil {
		d.Duration = *s.DurationMinutes
	}
	for _, t := range s.Conversation {
		d.Conversation = append(d.Conversation, turnToDoc(t))
	}
	return d
}

func sessionFromDoc(id string, d sessionDoc) (*interview.Session, error) {
	s := &interview.Session{
		ID:             id,
		RequesterID:    d.UserID,
		PracticeOption: d.PracticeOption,
		Topic:          d.Topic,
		Interviewer:    d.InterviewerName,
		Status:         interview.Status(d.Status),
		QuestionCount:  d.TotalQuestions,
		Feedback:       d.Feedback,
		Score:          d.Score,
		Difficulty:     d.Difficulty,
		Tags:           d.Tags,
		Conversation:   make([]interview.Turn, 0, len(d.Conversation)),
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	// older documents only carry the flag
	if d.IsCompleted {
		s.Status = interview.StatusCompleted
	}
	if s.Status == interview.StatusCompleted {
		dur := d.Duration
		s.DurationMinutes = &dur
	}

	var err error
	if s.CreatedAt, err = parseISO(fieldCreatedAt, d.CreatedAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseISO(fieldUpdatedAt, d.UpdatedAt); err != nil {
		return nil, err
	}
	if s.CompletedAt, err = parseISOPtr(fieldCompletedAt, d.CompletedAt); err != nil {
		return nil, err
	}
	if s.PausedAt, err = parseISOPtr(fieldPausedAt, d.PausedAt); err != nil {
		return nil, err
	}
	if s.ResumedAt, err = parseISOPtr(fieldResumedAt, d.ResumedAt); err != nil {
		return nil, err
	}
	for _, td := range d.Conversation {
		t, err := turnFromDoc(td)
		if err != nil {
			return nil, err
		}
		s.Conversation = append(s.Conversation, t)
	}
	return s, nil
}

func turnToDoc(t interview.Turn) turnDoc {
	sender := string(t.Speaker)
	if t.Speaker == interview.SpeakerRequester {
		sender = senderUser
	}
	medium := t.Medium
	if medium == "" {
		medium = interview.MediumVoice
	}
	md := t.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return turnDoc{
		ID:        t.ID,
		Content:   t.Content,
		Sender:    sender,
		Timestamp: isoTime(t.Timestamp),
		Type:      string(medium),
		Metadata:  md,
	}
}

func turnFromDoc(d turnDoc) (interview.Turn, error) {
	ts, err := parseISO("timestamp", d.Timestamp)
	if err != nil {
		return interview.Turn{}, fmt.Errorf("turn %s: %w", d.ID, err)
	}
	speaker := interview.Speaker(d.Sender)
	if d.Sender == senderUser {
		speaker = interview.SpeakerRequester
	}
	t := interview.Turn{
		ID:        d.ID,
		Content:   d.Content,
		Speaker:   speaker,
		Medium:    interview.Medium(d.Type),
		Timestamp: ts,
	}
	if len(d.Metadata) > 0 {
		t.Metadata = d.Metadata
	}
	return t, nil
}
