package interview

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chadiek/interview-coach/internal/device"
	"github.com/chadiek/interview-coach/internal/transcript"
)

// ErrClosed is returned by controls issued after Close.
var ErrClosed = errors.New("coordinator closed")

// Config holds the per-session policy values.
type Config struct {
	// ConfidenceThreshold discards transcripts scoring below it. Zero accepts
	// any non-empty transcript.
	ConfidenceThreshold float64
	Language            string
	SampleRate          int
	WithCamera          bool
	GenerateTimeout     time.Duration
	TranscribeTimeout   time.Duration
	ArchiveTimeout      time.Duration
	LevelInterval       time.Duration
	// GeneratorName is recorded in interviewer turn metadata.
	GeneratorName string
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		Language:            "en-US",
		SampleRate:          16000,
		GenerateTimeout:     30 * time.Second,
		TranscribeTimeout:   30 * time.Second,
		ArchiveTimeout:      15 * time.Second,
		LevelInterval:       100 * time.Millisecond,
	}
}

// Deps are the collaborators of a Coordinator. Archive, Logger, Now,
// OnChange and OnLevel are optional.
type Deps struct {
	Store       Store
	Devices     Devices
	Transcriber Transcriber
	Generator   Generator
	Synthesizer Synthesizer
	Archive     Archive
	Logger      *zap.Logger
	Now         func() time.Time
	// OnChange receives a snapshot after every visible change. Calls are
	// serialized and never deliver an older snapshot after a newer one, so
	// OnChange must not call back into the Coordinator's mutating methods.
	OnChange func(Snapshot)
	// OnLevel receives microphone levels while the microphone is held.
	OnLevel func(float64)
}

type step string

const (
	stepNone     step = ""
	stepPersist  step = "persist"
	stepGenerate step = "generate"
)

type entry struct {
	turn  Turn
	saved bool
}

// Coordinator drives one voice interview session. All controls are safe for
// concurrent use; collaborator calls run outside the lock under a session
// context that End cancels.
type Coordinator struct {
	deps  Deps
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
	ctx   context.Context
	stop  context.CancelFunc
	genCx Context

	// persistMu serializes store writes.
	persistMu sync.Mutex
	// emitMu orders OnChange deliveries; held across Snapshot and the call.
	emitMu sync.Mutex

	mu          sync.Mutex
	state       State
	pausedFrom  State
	closed      bool
	session     *Session
	turns       []entry
	seq         int
	lastTS      time.Time
	reply       string
	stalled     step
	completion  *StatusExtra
	muted       bool
	wantCamera  bool
	camBusy     bool
	camErr      string
	sttFailed   bool
	mic         device.AudioSource
	cam         device.Stream
	rec         device.Recording
	speakCancel context.CancelFunc
	monitorDone chan struct{}
}

// New loads the session and returns its Coordinator. A paused session starts
// in Paused; a completed one is rejected with ErrEnded.
func New(ctx context.Context, deps Deps, cfg Config, sessionID string, requester Requester) (*Coordinator, error) {
	if deps.Store == nil || deps.Devices == nil || deps.Transcriber == nil || deps.Generator == nil || deps.Synthesizer == nil {
		return nil, errors.New("interview: missing collaborator")
	}
	s, err := deps.Store.Get(ctx, sessionID)
	if err != nil {
		return nil, &PersistenceError{Op: "get session", Err: err}
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if s.Status == StatusCompleted {
		return nil, ErrEnded
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	c := &Coordinator{
		deps:       deps,
		cfg:        cfg,
		log:        log.With(zap.String("session_id", s.ID), zap.String("requester_id", requester.ID)),
		now:        now,
		session:    s.Clone(),
		wantCamera: cfg.WithCamera,
		genCx: Context{
			Interviewer:    s.Interviewer,
			PracticeOption: s.PracticeOption,
			Topic:          s.Topic,
			RequesterName:  requester.DisplayName,
		},
	}
	c.ctx, c.stop = context.WithCancel(context.WithoutCancel(ctx))
	for _, t := range c.session.Conversation {
		c.turns = append(c.turns, entry{turn: t, saved: true})
		if t.Timestamp.After(c.lastTS) {
			c.lastTS = t.Timestamp
		}
	}
	c.seq = len(c.turns)
	c.session.Conversation = nil
	if s.Status == StatusPaused {
		c.state = Paused
		c.pausedFrom = Idle
	}
	return c, nil
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the id of the driven session.
func (c *Coordinator) SessionID() string { return c.session.ID }

// Start acquires the devices and opens the interview with a greeting. On a
// session that already has turns the greeting is skipped.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if err := c.goneLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != Idle && c.state != DeviceError {
		err := notAllowed("start", c.state)
		c.mu.Unlock()
		return err
	}
	c.state = Greeting
	c.camErr = ""
	c.mu.Unlock()
	c.emit()

	actx, cancel := c.opContext(ctx, 0)
	mic, cam, err := c.acquire(actx)
	cancel()

	c.mu.Lock()
	if gone := c.goneLocked(); gone != nil {
		c.mu.Unlock()
		c.release(mic)
		c.release(cam)
		return gone
	}
	if err != nil {
		c.state = DeviceError
		c.mu.Unlock()
		c.log.Warn("device acquisition failed", zap.Error(err))
		c.emit()
		return err
	}
	// the camera may have been switched off while it was being acquired
	var unwanted device.Stream
	if cam != nil && !c.wantCamera {
		unwanted, cam = cam, nil
	}
	c.mic, c.cam = mic, cam
	c.startMonitorLocked(mic)
	if len(c.turns) > 0 {
		c.state = AwaitingInput
		c.mu.Unlock()
		c.release(unwanted)
		c.log.Info("session rejoined", zap.Int("turns", len(c.turns)))
		c.emit()
		return nil
	}
	c.mu.Unlock()
	c.release(unwanted)
	c.log.Info("session started", zap.Bool("camera", cam != nil))
	return c.advance()
}

// acquire obtains the microphone and, when the camera preference is on once
// the microphone is held, the camera. On failure everything already acquired
// is released.
func (c *Coordinator) acquire(ctx context.Context) (device.AudioSource, device.Stream, error) {
	s, err := c.deps.Devices.Acquire(ctx, device.Microphone)
	if err != nil {
		return nil, nil, asAcquisitionError(device.Microphone, err)
	}
	mic, ok := s.(device.AudioSource)
	if !ok {
		c.release(s)
		return nil, nil, &AcquisitionError{Kind: device.Microphone, Err: device.ErrUnavailable}
	}
	c.mu.Lock()
	withCamera := c.wantCamera
	c.mu.Unlock()
	if !withCamera {
		return mic, nil, nil
	}
	cam, err := c.deps.Devices.Acquire(ctx, device.Camera)
	if err != nil {
		c.release(mic)
		return nil, nil, asAcquisitionError(device.Camera, err)
	}
	return mic, cam, nil
}

// BeginSpeaking opens a recording. Only legal while awaiting input.
func (c *Coordinator) BeginSpeaking() error {
	c.mu.Lock()
	if err := c.goneLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != AwaitingInput {
		err := notAllowed("begin speaking", c.state)
		c.mu.Unlock()
		return err
	}
	if c.mic == nil {
		c.mu.Unlock()
		return &AcquisitionError{Kind: device.Microphone, Err: device.ErrUnavailable}
	}
	rec, err := c.mic.StartRecording()
	if err != nil {
		c.mu.Unlock()
		return &AcquisitionError{Kind: device.Microphone, Err: err}
	}
	c.rec = rec
	c.state = Recording
	c.sttFailed = false
	c.mu.Unlock()
	c.emit()
	return nil
}

// StopSpeaking finalizes the recording and runs it through transcription,
// generation and synthesis. It is a no-op unless recording.
func (c *Coordinator) StopSpeaking(ctx context.Context) error {
	c.mu.Lock()
	if err := c.goneLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != Recording {
		c.mu.Unlock()
		return nil
	}
	rec := c.rec
	c.rec = nil
	c.state = Transcribing
	c.mu.Unlock()
	c.emit()

	tctx, cancel := c.opContext(ctx, c.cfg.TranscribeTimeout)
	defer cancel()
	blob, err := rec.Stop(tctx)
	var res transcript.Result
	if err == nil {
		res, err = c.deps.Transcriber.Transcribe(tctx, blob, transcript.Options{
			Language:   c.cfg.Language,
			SampleRate: c.cfg.SampleRate,
		})
	}

	c.mu.Lock()
	if gone := c.goneLocked(); gone != nil {
		c.mu.Unlock()
		return gone
	}
	if err != nil {
		c.sttFailed = true
		c.state = AwaitingInput
		c.mu.Unlock()
		c.log.Warn("transcription failed", zap.Error(err))
		c.emit()
		return &TranscriptionError{Err: err}
	}
	text := strings.TrimSpace(res.Transcript)
	if text == "" || res.Confidence < c.cfg.ConfidenceThreshold {
		c.state = AwaitingInput
		c.mu.Unlock()
		c.log.Debug("transcript discarded",
			zap.Int("chars", len(text)),
			zap.Float64("confidence", res.Confidence))
		c.emit()
		return nil
	}
	c.mu.Unlock()

	md := map[string]any{"confidence": res.Confidence}
	if key := c.archive(blob); key != "" {
		md["audio_key"] = key
	}

	c.mu.Lock()
	if gone := c.goneLocked(); gone != nil {
		c.mu.Unlock()
		return gone
	}
	c.appendLocked(Turn{
		Content:  text,
		Speaker:  SpeakerRequester,
		Medium:   MediumVoice,
		Metadata: md,
	})
	c.mu.Unlock()
	c.emit()
	return c.advance()
}

func (c *Coordinator) archive(blob device.AudioBlob) string {
	if c.deps.Archive == nil || blob.Empty() {
		return ""
	}
	actx, cancel := c.opContext(c.ctx, c.cfg.ArchiveTimeout)
	defer cancel()
	key, err := c.deps.Archive.Save(actx, c.session.ID, uuid.NewString(), blob)
	if err != nil {
		c.log.Warn("archive recording failed", zap.Error(err))
		return ""
	}
	return key
}

// advance runs the pipeline from wherever it stands: persist unsaved turns,
// speak a pending reply, or generate the next one.
func (c *Coordinator) advance() error {
	for {
		if err := c.flushTurns(c.ctx); err != nil {
			c.mu.Lock()
			if gone := c.goneLocked(); gone != nil {
				c.mu.Unlock()
				return gone
			}
			c.stalled = stepPersist
			c.mu.Unlock()
			c.log.Error("persist turn failed", zap.Error(err))
			c.emit()
			return err
		}

		c.mu.Lock()
		if gone := c.goneLocked(); gone != nil {
			c.mu.Unlock()
			return gone
		}
		if c.reply != "" {
			return c.speakLocked()
		}

		if c.state != Greeting {
			c.state = Generating
		}
		greeting := c.state == Greeting
		history := c.historyLocked()
		c.mu.Unlock()
		c.emit()

		gctx, cancel := c.opContext(c.ctx, c.cfg.GenerateTimeout)
		started := c.now()
		text, err := c.deps.Generator.NextUtterance(gctx, history, c.genCx)
		cancel()
		text = strings.TrimSpace(text)
		if err == nil && text == "" {
			err = errors.New("empty utterance")
		}

		c.mu.Lock()
		if gone := c.goneLocked(); gone != nil {
			c.mu.Unlock()
			return gone
		}
		if err != nil {
			c.stalled = stepGenerate
			c.mu.Unlock()
			c.log.Error("generate utterance failed", zap.Error(err), zap.Int("history", len(history)))
			c.emit()
			return &GenerationError{Err: err}
		}
		md := map[string]any{
			"latency_ms": c.now().Sub(started).Milliseconds(),
		}
		if greeting {
			md["is_greeting"] = true
		}
		if c.cfg.GeneratorName != "" {
			md["generated_by"] = c.cfg.GeneratorName
		}
		c.appendLocked(Turn{
			Content:  text,
			Speaker:  SpeakerInterviewer,
			Medium:   MediumVoice,
			Metadata: md,
		})
		c.reply = text
		c.mu.Unlock()
		c.emit()
	}
}

// speakLocked plays the pending reply and settles in AwaitingInput. It is
// entered with mu held and returns with it released.
func (c *Coordinator) speakLocked() error {
	text := c.reply
	c.reply = ""
	c.state = Speaking
	muted := c.muted
	var sctx context.Context
	if !muted {
		var cancel context.CancelFunc
		sctx, cancel = context.WithCancel(c.ctx)
		c.speakCancel = cancel
	}
	c.mu.Unlock()
	c.emit()

	if !muted {
		err := c.deps.Synthesizer.Speak(sctx, text)
		if err != nil && sctx.Err() == nil {
			c.log.Warn("speech synthesis failed", zap.Error(err))
		}
	}

	c.mu.Lock()
	if c.speakCancel != nil {
		c.speakCancel()
		c.speakCancel = nil
	}
	if gone := c.goneLocked(); gone != nil {
		c.mu.Unlock()
		return gone
	}
	c.state = AwaitingInput
	c.mu.Unlock()
	c.emit()
	return nil
}

// Retry resumes a pipeline stalled on a persistence or generation failure.
// After End it retries saving unsaved turns and the completion status.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Ended {
		pending := c.completion != nil || c.firstUnsavedLocked() >= 0
		c.mu.Unlock()
		if !pending {
			return ErrNothingToRetry
		}
		return c.flushEnded(ctx)
	}
	if c.stalled == stepNone {
		c.mu.Unlock()
		return ErrNothingToRetry
	}
	c.log.Info("retrying stalled step", zap.String("step", string(c.stalled)))
	c.stalled = stepNone
	c.mu.Unlock()
	c.emit()
	return c.advance()
}

// Pause suspends an idle or waiting session and persists the paused status.
func (c *Coordinator) Pause(ctx context.Context) error {
	c.mu.Lock()
	if err := c.goneLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != Idle && c.state != AwaitingInput {
		err := notAllowed("pause", c.state)
		c.mu.Unlock()
		return err
	}
	c.pausedFrom = c.state
	c.state = Paused
	c.mu.Unlock()
	c.emit()

	at := c.now()
	if err := c.writeStatus(ctx, StatusPaused, StatusExtra{At: at}); err != nil {
		c.mu.Lock()
		if c.state == Paused {
			c.state = c.pausedFrom
		}
		c.mu.Unlock()
		c.emit()
		return err
	}
	c.mu.Lock()
	c.session.PausedAt = &at
	c.mu.Unlock()
	c.emit()
	return nil
}

// Resume returns a paused session to the state it was paused from and
// persists the active status.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.mu.Lock()
	if err := c.goneLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != Paused {
		err := notAllowed("resume", c.state)
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	at := c.now()
	if err := c.writeStatus(ctx, StatusActive, StatusExtra{At: at}); err != nil {
		return err
	}
	c.mu.Lock()
	if gone := c.goneLocked(); gone != nil {
		c.mu.Unlock()
		return gone
	}
	if c.state == Paused {
		c.state = c.pausedFrom
	}
	c.session.ResumedAt = &at
	c.mu.Unlock()
	c.emit()
	return nil
}

func (c *Coordinator) writeStatus(ctx context.Context, status Status, extra StatusExtra) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if err := c.deps.Store.SetStatus(ctx, c.session.ID, status, extra); err != nil {
		c.log.Error("persist status failed", zap.String("status", string(status)), zap.Error(err))
		return &PersistenceError{Op: "set status " + string(status), Err: err}
	}
	c.mu.Lock()
	c.session.Status = status
	c.mu.Unlock()
	return nil
}

// SetMuted toggles playback. Muting while speaking cuts the reply short.
func (c *Coordinator) SetMuted(muted bool) error {
	c.mu.Lock()
	if err := c.goneLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.muted = muted
	if muted && c.speakCancel != nil {
		c.speakCancel()
	}
	c.mu.Unlock()
	c.emit()
	return nil
}

// ToggleCamera releases a held camera or acquires one. Before Start it only
// flips whether Start acquires the camera. A failure is reported in the
// snapshot and leaves the session state unchanged.
func (c *Coordinator) ToggleCamera(ctx context.Context) error {
	c.mu.Lock()
	if err := c.goneLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	// without a held microphone only the preference changes; Start applies it
	if c.state == Idle || c.state == DeviceError || c.mic == nil && (c.state == Paused || c.state == Greeting) {
		c.wantCamera = !c.wantCamera
		c.mu.Unlock()
		c.emit()
		return nil
	}
	if c.camBusy {
		c.mu.Unlock()
		return notAllowed("toggle camera", c.state)
	}
	if c.cam != nil {
		cam := c.cam
		c.cam = nil
		c.wantCamera = false
		c.mu.Unlock()
		c.release(cam)
		c.emit()
		return nil
	}
	c.camBusy = true
	c.mu.Unlock()

	actx, cancel := c.opContext(ctx, 0)
	s, err := c.deps.Devices.Acquire(actx, device.Camera)
	cancel()

	c.mu.Lock()
	c.camBusy = false
	if gone := c.goneLocked(); gone != nil {
		c.mu.Unlock()
		if err == nil {
			c.release(s)
		}
		return gone
	}
	if err != nil {
		err = asAcquisitionError(device.Camera, err)
		c.camErr = err.Error()
		c.mu.Unlock()
		c.log.Warn("camera acquisition failed", zap.Error(err))
		c.emit()
		return err
	}
	c.cam = s
	c.wantCamera = true
	c.camErr = ""
	c.mu.Unlock()
	c.emit()
	return nil
}

// End terminates the session from any state: in-flight calls are cancelled,
// devices released and the completed status persisted. Late results of
// cancelled calls are dropped.
func (c *Coordinator) End(ctx context.Context, comp Completion) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Ended {
		c.mu.Unlock()
		return ErrEnded
	}
	prev := c.state
	c.state = Ended
	mic, cam := c.teardownLocked()
	c.stalled = stepNone
	c.reply = ""

	at := c.now()
	minutes := int(math.Round(at.Sub(c.session.CreatedAt).Minutes()))
	if minutes < 0 {
		minutes = 0
	}
	c.completion = &StatusExtra{
		At:              at,
		DurationMinutes: &minutes,
		Feedback:        comp.Feedback,
		Score:           comp.Score,
	}
	c.session.CompletedAt = &at
	c.session.DurationMinutes = &minutes
	c.session.Feedback = comp.Feedback
	c.session.Score = comp.Score
	c.mu.Unlock()

	c.release(mic)
	c.release(cam)
	c.log.Info("session ended", zap.Stringer("from", prev), zap.Int("minutes", minutes))
	c.emit()
	return c.flushEnded(ctx)
}

func (c *Coordinator) flushEnded(ctx context.Context) error {
	if err := c.flushTurns(ctx); err != nil {
		c.log.Error("persist turn after end failed", zap.Error(err))
		c.emit()
		return err
	}
	c.mu.Lock()
	extra := c.completion
	c.mu.Unlock()
	if extra == nil {
		return nil
	}
	if err := c.writeStatus(ctx, StatusCompleted, *extra); err != nil {
		c.emit()
		return err
	}
	c.mu.Lock()
	c.completion = nil
	c.mu.Unlock()
	c.emit()
	return nil
}

// Close tears down the live resources without ending the session, as when
// the client disconnects, and makes a last attempt to save unsaved turns.
// Calling it again is a no-op.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	mic, cam := c.teardownLocked()
	c.mu.Unlock()
	c.release(mic)
	c.release(cam)
	c.log.Debug("coordinator closed")
	return c.flushTurns(ctx)
}

// teardownLocked cancels in-flight work and detaches the devices, which the
// caller must release once mu is dropped.
func (c *Coordinator) teardownLocked() (device.Stream, device.Stream) {
	c.stop()
	if c.speakCancel != nil {
		c.speakCancel()
		c.speakCancel = nil
	}
	if c.rec != nil {
		c.rec.Discard()
		c.rec = nil
	}
	c.stopMonitorLocked()
	var mic device.Stream
	if c.mic != nil {
		mic = c.mic
	}
	cam := c.cam
	c.mic, c.cam = nil, nil
	return mic, cam
}

func (c *Coordinator) release(s device.Stream) {
	if s == nil {
		return
	}
	if err := c.deps.Devices.Release(s); err != nil {
		c.log.Warn("release device failed", zap.String("kind", string(s.Kind())), zap.Error(err))
	}
}

func (c *Coordinator) startMonitorLocked(mic device.AudioSource) {
	if c.deps.OnLevel == nil || mic == nil {
		return
	}
	interval := c.cfg.LevelInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	done := make(chan struct{})
	c.monitorDone = done
	onLevel := c.deps.OnLevel
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				onLevel(mic.Level())
			}
		}
	}()
}

func (c *Coordinator) stopMonitorLocked() {
	if c.monitorDone != nil {
		close(c.monitorDone)
		c.monitorDone = nil
	}
}

// flushTurns appends unsaved turns to the store in order, stopping at the
// first failure.
func (c *Coordinator) flushTurns(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	for {
		c.mu.Lock()
		i := c.firstUnsavedLocked()
		if i < 0 {
			c.mu.Unlock()
			return nil
		}
		t := c.turns[i].turn.Clone()
		c.mu.Unlock()

		if err := c.deps.Store.AppendTurn(ctx, c.session.ID, t); err != nil {
			return &PersistenceError{Op: "append turn " + t.ID, Err: err}
		}
		c.mu.Lock()
		c.turns[i].saved = true
		if t.Speaker == SpeakerInterviewer {
			c.session.QuestionCount++
		}
		c.mu.Unlock()
	}
}

func (c *Coordinator) firstUnsavedLocked() int {
	for i := range c.turns {
		if !c.turns[i].saved {
			return i
		}
	}
	return -1
}

// appendLocked records a turn with the next id and a timestamp strictly
// after the previous turn's.
func (c *Coordinator) appendLocked(t Turn) {
	c.seq++
	t.ID = strconv.Itoa(c.seq)
	ts := c.now()
	if !ts.After(c.lastTS) {
		ts = c.lastTS.Add(time.Microsecond)
	}
	c.lastTS = ts
	t.Timestamp = ts
	c.turns = append(c.turns, entry{turn: t})
}

func (c *Coordinator) historyLocked() []Turn {
	out := make([]Turn, len(c.turns))
	for i, e := range c.turns {
		out[i] = e.turn.Clone()
	}
	return out
}

func (c *Coordinator) goneLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.state == Ended {
		return ErrEnded
	}
	return nil
}

// opContext derives a context from the caller's that is also cancelled when
// the session ends.
func (c *Coordinator) opContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	detach := context.AfterFunc(c.ctx, cancel)
	if timeout <= 0 {
		return ctx, func() { detach(); cancel() }
	}
	tctx, tcancel := context.WithTimeout(ctx, timeout)
	return tctx, func() { tcancel(); detach(); cancel() }
}

func (c *Coordinator) emit() {
	if c.deps.OnChange == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.deps.OnChange(c.Snapshot())
}

func asAcquisitionError(kind device.Kind, err error) error {
	var acq *AcquisitionError
	if errors.As(err, &acq) {
		return acq
	}
	return &AcquisitionError{Kind: kind, Err: err}
}
