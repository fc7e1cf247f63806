package playback

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"peerplay/internal/domain"
)

// Handle is the caller-facing view of one playback. It never owns the
// session; cancellation and status flow through it while the controller
// keeps ownership of teardown.
type Handle struct {
	id string

	mu     sync.Mutex
	status domain.PlaybackStatus
	reason error

	done     chan struct{}
	doneOnce sync.Once

	cancelFn func()
}

func newHandle() *Handle {
	return &Handle{
		id:     uuid.NewString(),
		status: domain.StatusBuffering,
		done:   make(chan struct{}),
	}
}

func (h *Handle) ID() string { return h.id }

// Status reports the current state; the error is the failure reason when
// the status is failed, nil otherwise.
func (h *Handle) Status() (domain.PlaybackStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.reason
}

// Done is closed when playback has fully ended and teardown has run.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until playback ends or ctx is cancelled. It returns the
// failure reason, nil on a normal end.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		_, reason := h.Status()
		return reason
	}
}

// Cancel stops playback: the player process is terminated first, then the
// session is closed and cleaned up. Idempotent.
func (h *Handle) Cancel() {
	h.mu.Lock()
	cancel := h.cancelFn
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *Handle) setStatus(status domain.PlaybackStatus) {
	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
}

func (h *Handle) setCancel(fn func()) {
	h.mu.Lock()
	h.cancelFn = fn
	h.mu.Unlock()
}

// finish records the terminal state and releases waiters. First caller wins.
func (h *Handle) finish(status domain.PlaybackStatus, reason error) {
	h.doneOnce.Do(func() {
		h.mu.Lock()
		h.status = status
		h.reason = reason
		h.mu.Unlock()
		close(h.done)
	})
}
