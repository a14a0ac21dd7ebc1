package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_AcquireWaitsForOffer(t *testing.T) {
	h := NewHub(time.Second)
	mic := NewMicrophone("a1", 16000)
	defer mic.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.Offer(mic)
	}()

	s, err := h.Acquire(context.Background(), Microphone)
	require.NoError(t, err)
	assert.Equal(t, "a1", s.ID())
	assert.Equal(t, 1, h.Held())
}

func TestHub_AcquireDenied(t *testing.T) {
	h := NewHub(time.Second)
	h.Deny(Camera, nil)

	_, err := h.Acquire(context.Background(), Camera)
	var acq *AcquisitionError
	require.ErrorAs(t, err, &acq)
	assert.Equal(t, Camera, acq.Kind)
	assert.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestHub_AcquireTimesOut(t *testing.T) {
	h := NewHub(30 * time.Millisecond)
	_, err := h.Acquire(context.Background(), Microphone)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHub_AcquireHeldStreamIsBusy(t *testing.T) {
	h := NewHub(time.Second)
	cam := NewCamera("v1")
	h.Offer(cam)

	_, err := h.Acquire(context.Background(), Camera)
	require.NoError(t, err)
	_, err = h.Acquire(context.Background(), Camera)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestHub_ReleaseIsIdempotent(t *testing.T) {
	h := NewHub(time.Second)
	var released []Kind
	h.OnRelease(func(k Kind) { released = append(released, k) })

	cam := NewCamera("v1")
	h.Offer(cam)
	s, err := h.Acquire(context.Background(), Camera)
	require.NoError(t, err)

	require.NoError(t, h.Release(s))
	require.NoError(t, h.Release(s))
	require.NoError(t, h.Release(nil))

	assert.Equal(t, []Kind{Camera}, released)
	assert.Equal(t, 0, h.Held())

	// released streams can be acquired again
	_, err = h.Acquire(context.Background(), Camera)
	assert.NoError(t, err)
}

func TestHub_OfferClearsDenial(t *testing.T) {
	h := NewHub(time.Second)
	h.Deny(Microphone, ErrPermissionDenied)
	mic := NewMicrophone("a1", 16000)
	defer mic.Close()
	h.Offer(mic)

	_, err := h.Acquire(context.Background(), Microphone)
	assert.NoError(t, err)
}

func TestHub_ReleaseDiscardsOpenRecording(t *testing.T) {
	h := NewHub(time.Second)
	mic := NewMicrophone("a1", 16000)
	defer mic.Close()
	h.Offer(mic)

	s, err := h.Acquire(context.Background(), Microphone)
	require.NoError(t, err)
	_, err = s.(AudioSource).StartRecording()
	require.NoError(t, err)

	require.NoError(t, h.Release(s))

	// a fresh recording can start because the old one was dropped
	rec, err := mic.StartRecording()
	require.NoError(t, err)
	rec.Discard()
}
