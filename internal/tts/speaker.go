package tts

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// SampleRate is the PCM rate every Streamer produces.
const SampleRate = 48000

// Streamer streams 48kHz PCM mono audio for the given text.
type Streamer interface {
	StreamPCM48k(ctx context.Context, text string) (<-chan []byte, <-chan error)
}

// Sink consumes 48kHz PCM bytes and delivers them paced to the listener.
type Sink interface {
	WritePCM(pcm []byte)
	// FlushTail pads and queues any partial frame.
	FlushTail()
	// Reset drops queued audio immediately.
	Reset()
	// Drain blocks until every queued frame has been played.
	Drain(ctx context.Context) error
}

// Speaker plays replies through a Sink, one sentence at a time.
type Speaker struct {
	streamer Streamer
	sink     Sink
	log      *zap.Logger
}

func NewSpeaker(streamer Streamer, sink Sink, log *zap.Logger) *Speaker {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Speaker{streamer: streamer, sink: sink, log: log}
}

// chunkReply splits a reply into sentence-like chunks so synthesis of the
// first sentence can start before the whole reply is processed.
// Heuristic: split on '.', '?', '!' and newlines, retaining punctuation.
func chunkReply(reply string) []string {
	txt := strings.TrimSpace(reply)
	if txt == "" {
		return nil
	}
	var chunks []string
	var b strings.Builder
	for _, r := range txt {
		switch r {
		case '.', '!', '?':
			b.WriteRune(r)
			chunk := strings.TrimSpace(b.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			b.Reset()
		case '\n', '\r':
			chunk := strings.TrimSpace(b.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	tail := strings.TrimSpace(b.String())
	if tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// Speak synthesizes text and returns once the sink has played it. When ctx
// is cancelled queued audio is dropped and ctx.Err() returned.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	var streamErr error
	chunks := chunkReply(text)
CHUNK_LOOP:
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break CHUNK_LOOP
		}
		pcmCh, errCh := s.streamer.StreamPCM48k(ctx, chunk)
		openPCM, openErr := true, true
		for openPCM || openErr {
			select {
			case b, ok := <-pcmCh:
				if !ok {
					openPCM = false
					pcmCh = nil
					continue
				}
				if len(b) > 0 && ctx.Err() == nil {
					s.sink.WritePCM(b)
				}
			case e, ok := <-errCh:
				if ok && e != nil {
					s.log.Warn("tts stream error", zap.Error(e))
					streamErr = errors.Join(streamErr, e)
				}
				openErr = false
				errCh = nil
			case <-ctx.Done():
				break CHUNK_LOOP
			}
		}
	}

	if err := ctx.Err(); err != nil {
		s.sink.Reset()
		return err
	}
	s.sink.FlushTail()
	if err := s.sink.Drain(ctx); err != nil {
		s.sink.Reset()
		return err
	}
	return streamErr
}

type nopSink struct{}

func (nopSink) WritePCM(_ []byte)             {}
func (nopSink) FlushTail()                    {}
func (nopSink) Reset()                        {}
func (nopSink) Drain(_ context.Context) error { return nil }
