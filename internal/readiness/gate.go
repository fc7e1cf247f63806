// Package readiness decides when enough of a file is buffered to hand
// control to the player, recomputing the threshold as the playback position
// and swarm throughput change.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"peerplay/internal/domain"
)

// BufferView is the slice of a stream session the gate observes.
type BufferView interface {
	BufferedFrom(offset int64) int64
	File() domain.FileRef
	Done() <-chan struct{}
}

type Gate struct {
	MinBufferBytes   int64
	MinBufferSeconds float64
	PollInterval     time.Duration
	Timeout          time.Duration
	Logger           *slog.Logger
}

const (
	defaultMinBufferBytes   = 10 << 20
	defaultMinBufferSeconds = 5.0
	defaultPollInterval     = 500 * time.Millisecond
	defaultTimeout          = 90 * time.Second

	// emaAlpha smooths the throughput estimate over buffered-byte deltas.
	emaAlpha = 0.3
)

func (g *Gate) minBufferBytes() int64 {
	if g.MinBufferBytes > 0 {
		return g.MinBufferBytes
	}
	return defaultMinBufferBytes
}

func (g *Gate) minBufferSeconds() float64 {
	if g.MinBufferSeconds > 0 {
		return g.MinBufferSeconds
	}
	return defaultMinBufferSeconds
}

func (g *Gate) pollInterval() time.Duration {
	if g.PollInterval > 0 {
		return g.PollInterval
	}
	return defaultPollInterval
}

func (g *Gate) timeout() time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return defaultTimeout
}

// threshold computes the byte count that must be buffered past offset before
// the player may start. Clamped to the bytes remaining in the file so small
// files and near-EOF seeks can never deadlock.
func (g *Gate) threshold(fileLen, offset int64, bytesPerSec float64) int64 {
	thr := g.minBufferBytes()
	if byRate := int64(bytesPerSec * g.minBufferSeconds()); byRate > thr {
		thr = byRate
	}
	if remaining := fileLen - offset; thr > remaining {
		thr = remaining
	}
	if thr < 0 {
		thr = 0
	}
	return thr
}

// Ready is the non-blocking probe: enough contiguous data past offset right
// now, using the floor threshold (no throughput component).
func (g *Gate) Ready(view BufferView, offset int64) bool {
	return view.BufferedFrom(offset) >= g.threshold(view.File().Length, offset, 0)
}

// Wait blocks until the threshold for offset is met, the session closes, the
// context is cancelled, or the timeout elapses (domain.ErrBufferTimeout).
// It polls cooperatively; no locks are held between polls.
func (g *Gate) Wait(ctx context.Context, view BufferView, offset int64) error {
	fileLen := view.File().Length
	if fileLen <= 0 {
		return fmt.Errorf("%w: no file selected", domain.ErrSessionClosed)
	}
	if offset >= fileLen {
		return nil
	}

	deadline := time.NewTimer(g.timeout())
	defer deadline.Stop()
	ticker := time.NewTicker(g.pollInterval())
	defer ticker.Stop()

	var (
		rate     float64 // EMA of buffered bytes/sec
		lastSeen = view.BufferedFrom(offset)
		lastAt   = time.Now()
	)

	if lastSeen >= g.threshold(fileLen, offset, rate) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			// A session close cancels waiter contexts; report the close, not
			// the cancellation, so callers map it to the right failure.
			select {
			case <-view.Done():
				return domain.ErrSessionClosed
			default:
			}
			return ctx.Err()
		case <-view.Done():
			return domain.ErrSessionClosed
		case <-deadline.C:
			if g.Logger != nil {
				g.Logger.Warn("buffer wait timed out",
					slog.Int64("offset", offset),
					slog.Int64("buffered", view.BufferedFrom(offset)),
					slog.Duration("timeout", g.timeout()),
				)
			}
			return fmt.Errorf("%w: offset %d after %s", domain.ErrBufferTimeout, offset, g.timeout())
		case now := <-ticker.C:
			buffered := view.BufferedFrom(offset)
			if dt := now.Sub(lastAt).Seconds(); dt > 0 {
				instant := float64(buffered-lastSeen) / dt
				if instant < 0 {
					instant = 0
				}
				if rate == 0 {
					rate = instant
				} else {
					rate = (1-emaAlpha)*rate + emaAlpha*instant
				}
			}
			lastSeen = buffered
			lastAt = now

			if buffered >= g.threshold(fileLen, offset, rate) {
				return nil
			}
		}
	}
}
