package rtc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrack struct{ writes int32 }

func (f *fakeTrack) WriteSample(s media.Sample) error {
	atomic.AddInt32(&f.writes, 1)
	return nil
}

func newTestWriter(ft *fakeTrack) *OpusPacedWriter {
	return &OpusPacedWriter{
		enc:          nil, // encoder not needed for these tests
		track:        ft,
		frameSamples: 960,
		frames:       make(chan []byte, 8),
		stopCh:       make(chan struct{}),
	}
}

func TestOpusPacedWriter_PacerWritesFrames(t *testing.T) {
	ft := &fakeTrack{}
	w := newTestWriter(ft)
	done := make(chan struct{})
	go func() { w.pacer(); close(done) }()

	for i := 0; i < 3; i++ {
		w.pushFrame([]byte{0x01, 0x02})
	}

	time.Sleep(50 * time.Millisecond)
	close(w.stopCh)
	<-done

	if atomic.LoadInt32(&ft.writes) == 0 {
		t.Fatalf("expected pacer to write at least one frame")
	}
}

func TestOpusPacedWriter_ResetDrains(t *testing.T) {
	ft := &fakeTrack{}
	w := newTestWriter(ft)
	w.pcmBuf = []int16{1, 2, 3}
	w.pushFrame([]byte{0x01})
	w.pushFrame([]byte{0x02})
	w.Reset()
	select {
	case <-w.frames:
		t.Fatalf("expected frames channel to be drained")
	default:
	}
	if len(w.pcmBuf) != 0 {
		t.Fatalf("expected pcmBuf to be reset, got len=%d", len(w.pcmBuf))
	}
	assert.Zero(t, w.queued.Load())
}

func TestOpusPacedWriter_DrainWaitsForPlayback(t *testing.T) {
	ft := &fakeTrack{}
	w := newTestWriter(ft)
	go w.pacer()
	defer w.Close()

	for i := 0; i < 4; i++ {
		w.pushFrame([]byte{0x01})
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Drain(ctx))
	assert.Equal(t, int32(4), atomic.LoadInt32(&ft.writes))
}

func TestOpusPacedWriter_DrainHonoursContext(t *testing.T) {
	w := newTestWriter(&fakeTrack{})
	w.pushFrame([]byte{0x01}) // no pacer running, never played
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Drain(ctx), context.DeadlineExceeded)
}
