package transcript

import (
	"context"
	"time"

	"github.com/chadiek/interview-coach/internal/device"
)

// Options selects how a recording is transcribed.
type Options struct {
	Language   string
	SampleRate int
}

// Word is one recognized word with its timing.
type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Result is the best alternative returned for a recording.
type Result struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Scripted returns a fixed transcript after an optional delay. It stands in
// for the remote service in local runs and tests.
type Scripted struct {
	Delay      time.Duration
	Transcript string
	Confidence float64
}

func (s Scripted) Transcribe(ctx context.Context, blob device.AudioBlob, _ Options) (Result, error) {
	if blob.Empty() {
		return Result{}, nil
	}
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-t.C:
		}
	}
	return Result{Transcript: s.Transcript, Confidence: s.Confidence}, nil
}
