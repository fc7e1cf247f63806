// Package playback owns the lifecycle of one playback at a time: acquire,
// buffer, hand a URL to the external player, and tear everything down when
// the player exits, no matter how it exits.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"peerplay/internal/cleanup"
	"peerplay/internal/domain"
	"peerplay/internal/domain/ports"
	"peerplay/internal/metrics"
	"peerplay/internal/readiness"
)

// StreamServer is the slice of the local HTTP server the controller uses.
type StreamServer interface {
	// Attach registers the session and returns the URL the player opens.
	Attach(session ports.Session) string
	Detach(sessionID string)
}

// StartRequest describes one playback to start.
type StartRequest struct {
	Source domain.SourceDescriptor
	Mode   domain.PlayMode
	// ResolvedURL is the direct URL for cached mode; the swarm is never
	// touched when it is set.
	ResolvedURL string
}

type Controller struct {
	engine   ports.Engine
	server   StreamServer
	gate     *readiness.Gate
	launcher PlayerLauncher
	cleanup  *cleanup.Policy
	logger   *slog.Logger

	// degradedStart lets playback begin at offset 0 with whatever is
	// buffered when the gate times out. Seek waits never degrade.
	degradedStart bool

	onProgress       func(domain.Progress)
	progressInterval time.Duration

	slot sync.Mutex // serializes close-then-open across Starts

	mu      sync.Mutex
	current *Handle
}

type Deps struct {
	Engine        ports.Engine
	Server        StreamServer
	Gate          *readiness.Gate
	Launcher      PlayerLauncher
	Cleanup       *cleanup.Policy
	Logger        *slog.Logger
	DegradedStart bool

	// OnProgress, when set, receives periodic progress snapshots for the
	// active swarm session.
	OnProgress       func(domain.Progress)
	ProgressInterval time.Duration
}

func New(d Deps) *Controller {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := d.ProgressInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Controller{
		engine:           d.Engine,
		server:           d.Server,
		gate:             d.Gate,
		launcher:         d.Launcher,
		cleanup:          d.Cleanup,
		logger:           logger,
		degradedStart:    d.DegradedStart,
		onProgress:       d.OnProgress,
		progressInterval: interval,
	}
}

// Active returns the current playback handle, nil when idle.
func (c *Controller) Active() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stop cancels the active playback and waits for its teardown.
func (c *Controller) Stop() error {
	h := c.Active()
	if h == nil {
		return domain.ErrNoActiveSession
	}
	h.Cancel()
	<-h.Done()
	return nil
}

// Start begins a new playback. At most one playback is active per process:
// an existing one is fully torn down first, then the new one starts, as one
// transaction under the slot lock.
func (c *Controller) Start(ctx context.Context, req StartRequest) (*Handle, error) {
	c.slot.Lock()
	defer c.slot.Unlock()

	if prev := c.Active(); prev != nil {
		c.logger.Info("replacing active playback", slog.String("previousId", prev.ID()))
		prev.Cancel()
		<-prev.Done()
	}

	handle := newHandle()
	c.mu.Lock()
	c.current = handle
	c.mu.Unlock()

	var err error
	if req.Mode == domain.ModeCached {
		err = c.startCached(handle, req)
	} else {
		err = c.startSwarm(ctx, handle, req)
	}
	if err != nil {
		metrics.PlaybackFailuresTotal.Inc()
		c.clearCurrent(handle)
		handle.finish(domain.StatusFailed, err)
		return nil, err
	}
	return handle, nil
}

// startCached launches the player straight against the resolved URL. No
// session, no local server, no cleanup beyond the process itself.
func (c *Controller) startCached(handle *Handle, req StartRequest) error {
	if req.ResolvedURL == "" {
		return fmt.Errorf("cached playback of %q: no resolved URL", req.Source.Title)
	}

	proc, err := c.launcher.Launch(context.Background(), req.ResolvedURL)
	if err != nil {
		return err
	}

	var once sync.Once
	finalize := func() {
		once.Do(func() {
			_ = proc.Kill()
			c.clearCurrent(handle)
		})
	}
	handle.setCancel(func() {
		finalize()
		handle.finish(domain.StatusEnded, nil)
	})
	handle.setStatus(domain.StatusPlaying)
	metrics.PlaybackStartsTotal.WithLabelValues(string(domain.ModeCached)).Inc()

	go func() {
		_ = proc.Wait()
		finalize()
		handle.finish(domain.StatusEnded, nil)
	}()
	return nil
}

func (c *Controller) startSwarm(ctx context.Context, handle *Handle, req StartRequest) error {
	session, err := c.engine.Open(ctx, req.Source)
	if err != nil {
		return fmt.Errorf("open source %q: %w", req.Source.Title, err)
	}

	// From here on the session must be released on every exit path.
	var (
		once sync.Once
		proc PlayerProcess
	)
	finalize := func() {
		once.Do(func() {
			if proc != nil {
				_ = proc.Kill()
			}
			c.server.Detach(session.ID())
			dataPath := session.DataPath()
			_ = session.Close()
			c.cleanup.Apply(dataPath)
			metrics.SessionActive.Set(0)
			c.clearCurrent(handle)
		})
	}
	fail := func(cause error) error {
		finalize()
		return cause
	}
	handle.setCancel(func() {
		finalize()
		handle.finish(domain.StatusEnded, nil)
	})

	if _, err := session.SelectFile(); err != nil {
		return fail(fmt.Errorf("select file in %q: %w", req.Source.Title, err))
	}

	url := c.server.Attach(session)
	metrics.SessionActive.Set(1)

	handle.setStatus(domain.StatusBuffering)
	if err := c.gate.Wait(ctx, session, 0); err != nil {
		buffered := session.BufferedFrom(0)
		if c.degradedStart && errors.Is(err, domain.ErrBufferTimeout) && buffered > 0 {
			c.logger.Warn("starting playback degraded",
				slog.String("title", req.Source.Title),
				slog.Int64("bufferedBytes", buffered),
			)
		} else {
			return fail(err)
		}
	}

	p, err := c.launcher.Launch(ctx, url)
	if err != nil {
		return fail(err)
	}
	proc = p

	handle.setStatus(domain.StatusPlaying)
	metrics.PlaybackStartsTotal.WithLabelValues(string(domain.ModeP2P)).Inc()
	c.logger.Info("playback started",
		slog.String("title", req.Source.Title),
		slog.String("url", url),
		slog.String("sessionId", session.ID()),
	)

	go c.superviseProgress(session, handle)
	go func() {
		_ = p.Wait()
		finalize()
		handle.finish(domain.StatusEnded, nil)
	}()
	return nil
}

// superviseProgress emits periodic snapshots until playback ends.
func (c *Controller) superviseProgress(session ports.Session, handle *Handle) {
	ticker := time.NewTicker(c.progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-handle.Done():
			return
		case <-session.Done():
			return
		case <-ticker.C:
			p := session.Progress()
			metrics.DownloadSpeedBytes.Set(float64(p.DownloadSpeed))
			metrics.BufferedPrefixBytes.Set(float64(p.BufferedPrefix))
			if c.onProgress != nil {
				c.onProgress(p)
			}
		}
	}
}

func (c *Controller) clearCurrent(handle *Handle) {
	c.mu.Lock()
	if c.current == handle {
		c.current = nil
	}
	c.mu.Unlock()
}
