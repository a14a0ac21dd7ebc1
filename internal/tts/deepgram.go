package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
	"go.uber.org/zap"
)

// DeepgramClient synthesizes interviewer replies over the Deepgram Aura
// websocket as 48 kHz linear16 PCM.
type DeepgramClient struct {
	APIKey string
	Model  string
	// Host overrides the API host. A ws:// host disables TLS.
	Host string
	// IdleWindow ends a chunk when audio stopped arriving and no Flushed
	// message came back.
	IdleWindow time.Duration
	// MaxDuration bounds one chunk's stream.
	MaxDuration time.Duration

	log *zap.Logger
}

func NewDeepgramClient(apiKey, model string, log *zap.Logger) *DeepgramClient {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DeepgramClient{
		APIKey:      apiKey,
		Model:       model,
		IdleWindow:  400 * time.Millisecond,
		MaxDuration: 12 * time.Second,
		log:         log.Named("deepgram_tts"),
	}
}

func (d *DeepgramClient) StreamPCM48k(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	stream := newAuraStream(ctx, d.log)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer stream.close()

		if d.APIKey == "" {
			errCh <- errors.New("deepgram: API key missing")
			return
		}
		if text == "" {
			return
		}
		if err := d.speak(ctx, stream, text); err != nil {
			errCh <- err
		}
	}()

	return stream.pcm, errCh
}

func (d *DeepgramClient) speak(ctx context.Context, stream *auraStream, text string) error {
	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.Model,
		Encoding:   "linear16",
		SampleRate: SampleRate,
	}
	dg, err := speak.NewWSUsingCallback(ctx, d.APIKey, &clientinterfaces.ClientOptions{Host: d.Host}, options, stream)
	if err != nil {
		return fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return errors.New("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		d.log.Warn("flush failed", zap.Error(err))
	}

	deadline := time.NewTimer(d.MaxDuration)
	defer deadline.Stop()
	var idle *time.Timer
	var idleC <-chan time.Time
	defer func() {
		if idle != nil {
			idle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stream.flushed:
			return stream.failure()
		case <-stream.activity:
			if idle == nil {
				idle = time.NewTimer(d.IdleWindow)
				idleC = idle.C
			} else {
				idle.Reset(d.IdleWindow)
			}
		case <-idleC:
			return stream.failure()
		case <-deadline.C:
			d.log.Warn("chunk exceeded max duration", zap.Duration("max", d.MaxDuration))
			return stream.failure()
		}
	}
}

// auraStream receives one chunk's speak websocket events.
type auraStream struct {
	ctx      context.Context
	log      *zap.Logger
	pcm      chan []byte
	activity chan struct{}
	flushed  chan struct{}
	once     sync.Once

	mu     sync.Mutex
	closed bool
	err    error
}

func newAuraStream(ctx context.Context, log *zap.Logger) *auraStream {
	return &auraStream{
		ctx:      ctx,
		log:      log,
		pcm:      make(chan []byte, 4096),
		activity: make(chan struct{}, 1),
		flushed:  make(chan struct{}),
	}
}

func (s *auraStream) finish() { s.once.Do(func() { close(s.flushed) }) }

func (s *auraStream) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *auraStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.pcm)
	}
}

func (s *auraStream) Binary(byMsg []byte) error {
	if len(byMsg) == 0 {
		return nil
	}
	b := make([]byte, len(byMsg))
	copy(b, byMsg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.pcm <- b:
	case <-s.ctx.Done():
		return nil
	}
	select {
	case s.activity <- struct{}{}:
	default:
	}
	return nil
}

func (s *auraStream) Flush(*msginterfaces.FlushedResponse) error {
	s.finish()
	return nil
}

func (s *auraStream) Error(er *msginterfaces.ErrorResponse) error {
	if er == nil {
		return nil
	}
	s.mu.Lock()
	s.err = fmt.Errorf("deepgram: %s %s", er.ErrCode, firstNonEmpty(er.Description, er.ErrMsg))
	s.mu.Unlock()
	s.finish()
	return nil
}

func (s *auraStream) Warning(w *msginterfaces.WarningResponse) error {
	if w != nil {
		s.log.Warn("server warning", zap.String("code", w.WarnCode), zap.String("msg", w.WarnMsg))
	}
	return nil
}

func (s *auraStream) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *auraStream) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *auraStream) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *auraStream) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *auraStream) UnhandledEvent([]byte) error                    { return nil }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
