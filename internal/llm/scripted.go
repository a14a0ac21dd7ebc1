package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/chadiek/interview-coach/internal/interview"
)

var defaultFollowUps = []string{
	"That's great! Can you tell me about a specific Java project you worked on?",
	"What was the hardest problem you ran into on that project, and how did you solve it?",
	"If you had to build it again today, what would you do differently?",
	"Thanks for sharing. Do you have any questions for me?",
}

// Scripted produces the canned greeting and a rotating list of follow-ups
// after an optional delay. It stands in for a model in local runs and tests.
type Scripted struct {
	Delay     time.Duration
	FollowUps []string
}

func (s Scripted) NextUtterance(ctx context.Context, history []interview.Turn, c interview.Context) (string, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	if len(history) == 0 {
		return fmt.Sprintf("Hello! I'm %s, and I'll be conducting your %s interview today. We'll be discussing %s. Please start by introducing yourself.",
			c.Interviewer, c.PracticeOption, c.Topic), nil
	}
	followUps := s.FollowUps
	if len(followUps) == 0 {
		followUps = defaultFollowUps
	}
	asked := 0
	for _, t := range history {
		if t.Speaker == interview.SpeakerInterviewer {
			asked++
		}
	}
	// the greeting is the first interviewer turn
	return followUps[(asked-1+len(followUps))%len(followUps)], nil
}
