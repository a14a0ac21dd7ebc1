package device

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// voiceRMS is the RMS that maps to a full-scale level reading.
const voiceRMS = 8000.0

type pcmItem struct {
	pcm     []byte
	flushed chan struct{}
}

// MicrophoneStream receives PCM16LE mono frames from the transport and
// captures them into recordings. Frames are processed on an internal
// goroutine so the transport's reader never blocks on a recording.
type MicrophoneStream struct {
	id         string
	sampleRate int

	items chan pcmItem
	done  chan struct{}
	once  sync.Once

	mu    sync.Mutex
	level float64
	rec   *pcmRecording
}

// NewMicrophone starts a microphone stream at the given sample rate.
func NewMicrophone(id string, sampleRate int) *MicrophoneStream {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	m := &MicrophoneStream{
		id:         id,
		sampleRate: sampleRate,
		items:      make(chan pcmItem, 512),
		done:       make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *MicrophoneStream) ID() string      { return m.id }
func (m *MicrophoneStream) Kind() Kind      { return Microphone }
func (m *MicrophoneStream) SampleRate() int { return m.sampleRate }

// Write queues a PCM16LE frame. Frames are dropped when the queue is full or
// the stream is closed.
func (m *MicrophoneStream) Write(pcm []byte) {
	if len(pcm) < 2 {
		return
	}
	select {
	case <-m.done:
	case m.items <- pcmItem{pcm: pcm}:
	default:
	}
}

// Level returns the most recent RMS input level scaled to 0..1.
func (m *MicrophoneStream) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// StartRecording begins capturing frames. Only one recording may be open.
func (m *MicrophoneStream) StartRecording() (Recording, error) {
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec != nil {
		return nil, ErrBusy
	}
	m.rec = &pcmRecording{mic: m, started: time.Now()}
	return m.rec, nil
}

// Close stops the stream. Open recordings are abandoned.
func (m *MicrophoneStream) Close() {
	m.once.Do(func() { close(m.done) })
	m.reset()
}

// reset drops the open recording and the level reading; the hub calls it on release.
func (m *MicrophoneStream) reset() {
	m.mu.Lock()
	m.rec = nil
	m.level = 0
	m.mu.Unlock()
}

func (m *MicrophoneStream) loop() {
	for {
		select {
		case <-m.done:
			return
		case it := <-m.items:
			if it.flushed != nil {
				close(it.flushed)
				continue
			}
			lvl := pcmLevel(it.pcm)
			m.mu.Lock()
			m.level = lvl
			if m.rec != nil {
				m.rec.buf = append(m.rec.buf, it.pcm...)
			}
			m.mu.Unlock()
		}
	}
}

// flush waits until every frame queued before the call has been processed.
func (m *MicrophoneStream) flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case m.items <- pcmItem{flushed: ack}:
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

type pcmRecording struct {
	mic     *MicrophoneStream
	started time.Time
	buf     []byte
}

func (r *pcmRecording) Stop(ctx context.Context) (AudioBlob, error) {
	if err := r.mic.flush(ctx); err != nil {
		r.Discard()
		return AudioBlob{}, err
	}
	r.mic.mu.Lock()
	if r.mic.rec != r {
		r.mic.mu.Unlock()
		return AudioBlob{}, ErrClosed
	}
	r.mic.rec = nil
	pcm := r.buf
	r.buf = nil
	r.mic.mu.Unlock()

	return EncodeWAV(pcm, r.mic.sampleRate), nil
}

func (r *pcmRecording) Discard() {
	r.mic.mu.Lock()
	if r.mic.rec == r {
		r.mic.rec = nil
	}
	r.buf = nil
	r.mic.mu.Unlock()
}

// pcmLevel computes a normalized RMS level over a PCM16LE buffer.
// Large buffers are sampled sparsely.
func pcmLevel(pcm []byte) float64 {
	step := 1
	if len(pcm) > 3200 {
		step = 2
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return 0
	}
	lvl := math.Sqrt(sumSquares/float64(count)) / voiceRMS
	if lvl > 1 {
		lvl = 1
	}
	return lvl
}

// CameraStream represents the client's video track. Frames are not captured.
type CameraStream struct{ id string }

// NewCamera wraps a video track id.
func NewCamera(id string) *CameraStream { return &CameraStream{id: id} }

func (c *CameraStream) ID() string { return c.id }
func (c *CameraStream) Kind() Kind { return Camera }
