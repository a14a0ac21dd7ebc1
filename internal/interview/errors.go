package interview

import (
	"errors"
	"fmt"

	"github.com/chadiek/interview-coach/internal/device"
)

var (
	// ErrNotAllowed is returned when a control is not legal in the current state.
	ErrNotAllowed = errors.New("not allowed in current state")
	// ErrEnded is returned by controls issued after the session ended.
	ErrEnded = errors.New("session ended")
	// ErrNothingToRetry is returned by Retry when no step is stalled.
	ErrNothingToRetry = errors.New("nothing to retry")
	// ErrSessionNotFound is returned by New for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
)

// AcquisitionError reports a denied or missing device.
type AcquisitionError = device.AcquisitionError

// TranscriptionError wraps a failed speech-to-text request.
type TranscriptionError struct{ Err error }

func (e *TranscriptionError) Error() string { return "transcription failed: " + e.Err.Error() }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// GenerationError wraps a failed response-generator request.
type GenerationError struct{ Err error }

func (e *GenerationError) Error() string { return "generation failed: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed store write. The in-memory state is kept.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

func notAllowed(op string, s State) error {
	return fmt.Errorf("%w: %s while %s", ErrNotAllowed, op, s)
}
