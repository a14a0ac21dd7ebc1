package device

import (
	"context"
	"sync"
	"time"
)

// DefaultAcquireTimeout bounds how long Acquire waits for the client to deliver a track.
const DefaultAcquireTimeout = 10 * time.Second

// Hub brokers the streams a media transport makes available to a single owner.
// The transport offers streams as tracks arrive and withdraws them when they end;
// the owner acquires and releases them.
type Hub struct {
	timeout   time.Duration
	onRelease func(Kind)

	mu      sync.Mutex
	offered map[Kind]Stream
	denied  map[Kind]error
	held    map[string]Stream
	changed chan struct{}
}

// NewHub creates an empty hub. A zero timeout uses DefaultAcquireTimeout.
func NewHub(timeout time.Duration) *Hub {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &Hub{
		timeout: timeout,
		offered: make(map[Kind]Stream),
		denied:  make(map[Kind]error),
		held:    make(map[string]Stream),
		changed: make(chan struct{}),
	}
}

// OnRelease registers a callback fired after a stream is released, so the
// transport can tell the client to stop the hardware.
func (h *Hub) OnRelease(fn func(Kind)) {
	h.mu.Lock()
	h.onRelease = fn
	h.mu.Unlock()
}

// Offer makes a stream available. It clears a previous denial of the same kind.
func (h *Hub) Offer(s Stream) {
	h.mu.Lock()
	h.offered[s.Kind()] = s
	delete(h.denied, s.Kind())
	h.broadcastLocked()
	h.mu.Unlock()
}

// Deny records that the client refused or lacks the device.
func (h *Hub) Deny(kind Kind, err error) {
	if err == nil {
		err = ErrPermissionDenied
	}
	h.mu.Lock()
	delete(h.offered, kind)
	h.denied[kind] = err
	h.broadcastLocked()
	h.mu.Unlock()
}

// Withdraw removes an offered stream whose track ended.
func (h *Hub) Withdraw(s Stream) {
	h.mu.Lock()
	if cur, ok := h.offered[s.Kind()]; ok && cur.ID() == s.ID() {
		delete(h.offered, s.Kind())
	}
	h.broadcastLocked()
	h.mu.Unlock()
}

// Acquire waits for a stream of the given kind and hands it to the caller
// exclusively until Release.
func (h *Hub) Acquire(ctx context.Context, kind Kind) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	for {
		h.mu.Lock()
		if err, ok := h.denied[kind]; ok {
			h.mu.Unlock()
			return nil, &AcquisitionError{Kind: kind, Err: err}
		}
		if s, ok := h.offered[kind]; ok {
			if _, busy := h.held[s.ID()]; busy {
				h.mu.Unlock()
				return nil, &AcquisitionError{Kind: kind, Err: ErrBusy}
			}
			h.held[s.ID()] = s
			h.mu.Unlock()
			return s, nil
		}
		changed := h.changed
		h.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, &AcquisitionError{Kind: kind, Err: ErrUnavailable}
		}
	}
}

// Release returns a held stream. Releasing twice, or releasing nil, is a no-op.
func (h *Hub) Release(s Stream) error {
	if s == nil {
		return nil
	}
	h.mu.Lock()
	if _, ok := h.held[s.ID()]; !ok {
		h.mu.Unlock()
		return nil
	}
	delete(h.held, s.ID())
	fn := h.onRelease
	h.broadcastLocked()
	h.mu.Unlock()

	if r, ok := s.(interface{ reset() }); ok {
		r.reset()
	}
	if fn != nil {
		fn(s.Kind())
	}
	return nil
}

// Held reports how many streams are currently acquired.
func (h *Hub) Held() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.held)
}

func (h *Hub) broadcastLocked() {
	close(h.changed)
	h.changed = make(chan struct{})
}
