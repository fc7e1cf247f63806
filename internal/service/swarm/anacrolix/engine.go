package anacrolix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anacrolix/torrent"

	"peerplay/internal/domain"
	"peerplay/internal/domain/ports"
)

// addTimeout caps the time we wait for the anacrolix client to accept a
// magnet link. AddMagnet can block on an internal client mutex when the
// client is busy.
const addTimeout = 10 * time.Second

type Config struct {
	DataDir     string
	MaxConns    int           // established connections per torrent; 0 = default
	OpenTimeout time.Duration // max wait for swarm metadata; 0 = default 60s
	Logger      *slog.Logger
}

const (
	defaultMaxConns    = 35
	defaultOpenTimeout = 60 * time.Second
)

// Engine wraps one anacrolix client. The playback lifecycle controller
// guarantees at most one open session at a time, so the engine carries no
// multi-session scheduling.
type Engine struct {
	client      *torrent.Client
	dataDir     string
	maxConns    int
	openTimeout time.Duration
	logger      *slog.Logger
}

func New(cfg Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", domain.ErrStorage, err)
	}

	clientConfig := torrent.NewDefaultClientConfig()
	clientConfig.DataDir = cfg.DataDir
	clientConfig.NoUpload = false

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("swarm client init: %w", err)
	}

	return newEngine(client, cfg), nil
}

// NewWithClient injects a pre-built client, used by tests.
func NewWithClient(client *torrent.Client, cfg Config) *Engine {
	return newEngine(client, cfg)
}

func newEngine(client *torrent.Client, cfg Config) *Engine {
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:      client,
		dataDir:     cfg.DataDir,
		maxConns:    maxConns,
		openTimeout: openTimeout,
		logger:      logger,
	}
}

func (e *Engine) Open(ctx context.Context, src domain.SourceDescriptor) (ports.Session, error) {
	if e.client == nil {
		return nil, errors.New("swarm client not configured")
	}

	// Run AddMagnet with a timeout so we never block indefinitely if the
	// client is busy.
	type addResult struct {
		t   *torrent.Torrent
		err error
	}
	ch := make(chan addResult, 1)
	go func() {
		t, err := e.client.AddMagnet(src.Magnet)
		ch <- addResult{t, err}
	}()

	var t *torrent.Torrent
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, res.err)
		}
		t = res.t
	case <-time.After(addTimeout):
		// The goroutine may still complete AddMagnet after we return.
		// Drop the orphaned torrent when it does.
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, fmt.Errorf("%w: swarm client busy", domain.ErrSourceUnavailable)
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, ctx.Err()
	}

	sess := newSession(e, t, src)

	// Metadata must arrive within the open timeout; a zero-peer magnet never
	// produces it. One attempt, no retry; the caller can offer another source.
	select {
	case <-t.GotInfo():
	case <-time.After(e.openTimeout):
		_ = sess.fail()
		t.Drop()
		return nil, fmt.Errorf("%w: no metadata within %s", domain.ErrSourceUnavailable, e.openTimeout)
	case <-ctx.Done():
		_ = sess.Close()
		return nil, ctx.Err()
	}

	if err := sess.transition(domain.PhaseSelecting); err != nil {
		return nil, err
	}

	t.SetMaxEstablishedConns(e.maxConns)
	t.AllowDataDownload()
	t.AllowDataUpload()

	e.logger.Info("source opened",
		slog.String("sessionId", sess.ID()),
		slog.String("infoHash", t.InfoHash().HexString()),
		slog.String("name", t.Name()),
	)
	return sess, nil
}

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	errList := e.client.Close()
	if len(errList) > 0 {
		return errList[0]
	}
	return nil
}

var _ ports.Engine = (*Engine)(nil)
