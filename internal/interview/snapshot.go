package interview

import "time"

// TurnView is a turn as shown to the client.
type TurnView struct {
	Turn
	Unsaved bool `json:"unsaved,omitempty"`
}

// Snapshot is a read-only view of the session for the live channel.
type Snapshot struct {
	SessionID           string     `json:"session_id"`
	State               State      `json:"state"`
	Status              Status     `json:"status"`
	Muted               bool       `json:"muted"`
	CameraOn            bool       `json:"camera_on"`
	CameraWanted        bool       `json:"camera_wanted"`
	CameraError         string     `json:"camera_error,omitempty"`
	TranscriptionFailed bool       `json:"transcription_failed"`
	Stalled             string     `json:"stalled,omitempty"`
	StatusUnsaved       bool       `json:"status_unsaved,omitempty"`
	QuestionCount       int        `json:"question_count"`
	DurationMinutes     *int       `json:"duration_minutes,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	Turns               []TurnView `json:"turns"`
}

// Unsaved reports whether any turn has not reached the store.
func (s Snapshot) Unsaved() bool {
	for _, t := range s.Turns {
		if t.Unsaved {
			return true
		}
	}
	return s.StatusUnsaved
}

// Snapshot returns the current view.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		SessionID:           c.session.ID,
		State:               c.state,
		Status:              c.session.Status,
		Muted:               c.muted,
		CameraOn:            c.cam != nil,
		CameraWanted:        c.wantCamera,
		CameraError:         c.camErr,
		TranscriptionFailed: c.sttFailed,
		Stalled:             string(c.stalled),
		StatusUnsaved:       c.completion != nil,
		QuestionCount:       c.session.QuestionCount,
		DurationMinutes:     clonePtr(c.session.DurationMinutes),
		CompletedAt:         clonePtr(c.session.CompletedAt),
		Turns:               make([]TurnView, len(c.turns)),
	}
	for i, e := range c.turns {
		s.Turns[i] = TurnView{Turn: e.turn.Clone(), Unsaved: !e.saved}
	}
	return s
}
