package store

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chadiek/interview-coach/internal/interview"
)

func TestSessionToDoc_UsesWebClientFields(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d := sessionToDoc(&interview.Session{
		RequesterID:    "u1",
		PracticeOption: "Mock Interview",
		Topic:          "Go",
		Interviewer:    "Jordan",
		Status:         interview.StatusActive,
		CreatedAt:      created,
		UpdatedAt:      created,
		QuestionCount:  2,
		Difficulty:     "hard",
		Conversation: []interview.Turn{
			{ID: "1", Content: "Hello", Speaker: interview.SpeakerInterviewer, Medium: interview.MediumVoice, Timestamp: created},
			{ID: "2", Content: "Hi", Speaker: interview.SpeakerRequester, Timestamp: created},
		},
	})

	assert.Equal(t, "u1", d.UserID)
	assert.Equal(t, "Jordan", d.InterviewerName)
	assert.Equal(t, 2, d.TotalQuestions)
	assert.Equal(t, "2026-03-01T09:00:00Z", d.CreatedAt)
	assert.False(t, d.IsCompleted)
	assert.Equal(t, []string{}, d.Tags)
	assert.Zero(t, d.Duration)
	assert.Nil(t, d.Feedback)

	require.Len(t, d.Conversation, 2)
	assert.Equal(t, "interviewer", d.Conversation[0].Sender)
	assert.Equal(t, "user", d.Conversation[1].Sender)
	assert.Equal(t, "voice", d.Conversation[1].Type)
	assert.Equal(t, map[string]any{}, d.Conversation[1].Metadata)
}

func TestSessionDoc_RoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	done := created.Add(25 * time.Minute)
	dur := 25
	score := 8.5
	feedback := "clear answers"
	in := &interview.Session{
		ID:              "s1",
		RequesterID:     "u1",
		Interviewer:     "Jordan",
		Status:          interview.StatusCompleted,
		CreatedAt:       created,
		UpdatedAt:       done,
		CompletedAt:     &done,
		DurationMinutes: &dur,
		QuestionCount:   3,
		Feedback:        &feedback,
		Score:           &score,
		Tags:            []string{"go"},
		Difficulty:      "medium",
		Conversation: []interview.Turn{
			{ID: "1", Content: "Hi", Speaker: interview.SpeakerRequester, Medium: interview.MediumText, Timestamp: created, Metadata: map[string]any{"confidence": 0.9}},
		},
	}

	d := sessionToDoc(in)
	assert.True(t, d.IsCompleted)
	assert.Equal(t, 25, d.Duration)

	out, err := sessionFromDoc("s1", d)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSessionFromDoc_LegacyDocuments(t *testing.T) {
	out, err := sessionFromDoc("s1", sessionDoc{
		UserID:      "u1",
		Status:      "active",
		CreatedAt:   "2026-03-01T09:00:00.123Z",
		IsCompleted: true,
		Conversation: []turnDoc{
			{ID: "1", Sender: "user", Timestamp: "2026-03-01T09:00:01.000Z", Type: "voice", Metadata: map[string]any{}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, interview.StatusCompleted, out.Status)
	require.NotNil(t, out.DurationMinutes)
	assert.Equal(t, 0, *out.DurationMinutes)
	assert.Equal(t, []string{}, out.Tags)
	require.Len(t, out.Conversation, 1)
	assert.Equal(t, interview.SpeakerRequester, out.Conversation[0].Speaker)
	assert.Nil(t, out.Conversation[0].Metadata)
	assert.Equal(t, 123*time.Millisecond, time.Duration(out.CreatedAt.Nanosecond()))

	_, err = sessionFromDoc("s2", sessionDoc{CreatedAt: "yesterday"})
	assert.ErrorContains(t, err, fieldCreatedAt)
}

func TestStatusUpdates_CompletionFields(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	dur := 30
	updates := statusUpdates(&interview.Session{
		Status:          interview.StatusCompleted,
		UpdatedAt:       at,
		CompletedAt:     &at,
		DurationMinutes: &dur,
	})

	got := map[string]any{}
	for _, u := range updates {
		got[u.Path] = u.Value
	}
	assert.Equal(t, map[string]any{
		fieldStatus:      "completed",
		fieldUpdatedAt:   "2026-03-01T09:30:00Z",
		fieldCompletedAt: "2026-03-01T09:30:00Z",
		fieldIsCompleted: true,
		fieldDuration:    30,
	}, got)

	updates = statusUpdates(&interview.Session{Status: interview.StatusPaused, UpdatedAt: at, PausedAt: &at})
	assert.Equal(t, []firestore.Update{
		{Path: fieldStatus, Value: "paused"},
		{Path: fieldUpdatedAt, Value: "2026-03-01T09:30:00Z"},
		{Path: fieldPausedAt, Value: "2026-03-01T09:30:00Z"},
	}, updates)
}
