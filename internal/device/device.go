package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind names a capture device.
type Kind string

const (
	Microphone Kind = "microphone"
	Camera     Kind = "camera"
)

var (
	// ErrPermissionDenied is reported when the browser refused access.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnavailable is reported when no track of the requested kind arrived in time.
	ErrUnavailable = errors.New("device unavailable")
	// ErrBusy is reported when the stream is already held by another owner.
	ErrBusy = errors.New("device busy")
	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("stream closed")
)

// AcquisitionError wraps any failure to obtain a device stream.
type AcquisitionError struct {
	Kind Kind
	Err  error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Stream is a live hardware stream delivered by the client.
type Stream interface {
	ID() string
	Kind() Kind
}

// AudioSource is a microphone stream that can be recorded and metered.
type AudioSource interface {
	Stream
	StartRecording() (Recording, error)
	// Level returns the most recent input level in the range 0..1.
	Level() float64
}

// Recording is an in-progress capture on an AudioSource.
type Recording interface {
	// Stop finalizes the capture, waiting until every buffered frame is flushed.
	Stop(ctx context.Context) (AudioBlob, error)
	// Discard abandons the capture without producing a blob.
	Discard()
}

// AudioBlob is one finalized recording.
type AudioBlob struct {
	Data        []byte
	ContentType string
	SampleRate  int
	Duration    time.Duration
}

// Empty reports whether the blob carries no audio samples.
func (b AudioBlob) Empty() bool { return b.Duration == 0 || len(b.Data) == 0 }
