package interview

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/chadiek/interview-coach/internal/device"
	"github.com/chadiek/interview-coach/internal/transcript"
)

var errBoom = errors.New("boom")

type fakeStore struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	appended   []Turn
	statuses   []Status
	extras     []StatusExtra
	failAppend int
	failStatus int
}

func newFakeStore(s *Session) *fakeStore {
	return &fakeStore{sessions: map[string]*Session{s.ID: s.Clone()}}
}

func (f *fakeStore) Create(ctx context.Context, s *Session) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s.Clone()
	return s.ID, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id].Clone(), nil
}

func (f *fakeStore) AppendTurn(ctx context.Context, id string, t Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend > 0 {
		f.failAppend--
		return errBoom
	}
	f.appended = append(f.appended, t)
	s := f.sessions[id]
	s.Conversation = append(s.Conversation, t)
	if t.Speaker == SpeakerInterviewer {
		s.QuestionCount++
	}
	return nil
}

func (f *fakeStore) SetStatus(ctx context.Context, id string, status Status, extra StatusExtra) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatus > 0 {
		f.failStatus--
		return errBoom
	}
	f.statuses = append(f.statuses, status)
	f.extras = append(f.extras, extra)
	f.sessions[id].Status = status
	return nil
}

func (f *fakeStore) turns() []Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Turn(nil), f.appended...)
}

func (f *fakeStore) lastStatus() (Status, StatusExtra, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return "", StatusExtra{}, false
	}
	return f.statuses[len(f.statuses)-1], f.extras[len(f.extras)-1], true
}

type fakeStream struct {
	id   string
	kind device.Kind
}

func (s *fakeStream) ID() string        { return s.id }
func (s *fakeStream) Kind() device.Kind { return s.kind }

type fakeMic struct {
	fakeStream
	mu   sync.Mutex
	open int
}

func (m *fakeMic) Level() float64 { return 0.25 }

func (m *fakeMic) StartRecording() (device.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open > 0 {
		return nil, device.ErrBusy
	}
	m.open++
	return &fakeRecording{mic: m}, nil
}

type fakeRecording struct{ mic *fakeMic }

func (r *fakeRecording) done() {
	r.mic.mu.Lock()
	r.mic.open = 0
	r.mic.mu.Unlock()
}

func (r *fakeRecording) Stop(ctx context.Context) (device.AudioBlob, error) {
	r.done()
	return device.EncodeWAV(make([]byte, 3200), 16000), nil
}

func (r *fakeRecording) Discard() { r.done() }

type fakeDevices struct {
	mu       sync.Mutex
	mic      *fakeMic
	cam      *fakeStream
	micErr   error
	camErr   error
	acquired map[string]int
	released map[string]int
	// onAcquire runs before each acquisition, outside the lock.
	onAcquire func(device.Kind)
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{
		mic:      &fakeMic{fakeStream: fakeStream{id: "mic-1", kind: device.Microphone}},
		cam:      &fakeStream{id: "cam-1", kind: device.Camera},
		acquired: map[string]int{},
		released: map[string]int{},
	}
}

func (d *fakeDevices) Acquire(ctx context.Context, kind device.Kind) (device.Stream, error) {
	if d.onAcquire != nil {
		d.onAcquire(kind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch kind {
	case device.Microphone:
		if d.micErr != nil {
			return nil, &device.AcquisitionError{Kind: kind, Err: d.micErr}
		}
		d.acquired[d.mic.id]++
		return d.mic, nil
	default:
		if d.camErr != nil {
			return nil, &device.AcquisitionError{Kind: kind, Err: d.camErr}
		}
		d.acquired[d.cam.id]++
		return d.cam, nil
	}
}

func (d *fakeDevices) Release(s device.Stream) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released[s.ID()]++
	return nil
}

func (d *fakeDevices) counts() (acquired, released map[string]int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, r := map[string]int{}, map[string]int{}
	for k, v := range d.acquired {
		a[k] = v
	}
	for k, v := range d.released {
		r[k] = v
	}
	return a, r
}

type fakeTranscriber struct {
	mu      sync.Mutex
	results []transcript.Result
	err     error
	calls   int
}

func (f *fakeTranscriber) set(res transcript.Result) {
	f.mu.Lock()
	f.results = []transcript.Result{res}
	f.err = nil
	f.mu.Unlock()
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, blob device.AudioBlob, opts transcript.Options) (transcript.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return transcript.Result{}, f.err
	}
	if len(f.results) == 0 {
		return transcript.Result{}, nil
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

type fakeGenerator struct {
	mu        sync.Mutex
	histories [][]Turn
	contexts  []Context
	failN     int
	n         int
	// gate, when set, holds every call until closed regardless of ctx, so
	// results can arrive after the session ended.
	gate    chan struct{}
	entered chan struct{}
}

func (g *fakeGenerator) NextUtterance(ctx context.Context, history []Turn, c Context) (string, error) {
	g.mu.Lock()
	g.histories = append(g.histories, history)
	g.contexts = append(g.contexts, c)
	g.n++
	n := g.n
	fail := g.failN > 0
	if fail {
		g.failN--
	}
	gate, entered := g.gate, g.entered
	g.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if fail {
		return "", errBoom
	}
	if len(history) == 0 {
		return "Hello! I'm " + c.Interviewer + ", let's talk about " + c.Topic + ".", nil
	}
	return "Follow-up question " + strconv.Itoa(n), nil
}

func (g *fakeGenerator) historyLens() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int, len(g.histories))
	for i, h := range g.histories {
		out[i] = len(h)
	}
	return out
}

type fakeSynth struct {
	mu      sync.Mutex
	spoken  []string
	block   bool
	started chan struct{}
}

func (s *fakeSynth) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	block, started := s.block, s.started
	s.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s *fakeSynth) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spoken)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
