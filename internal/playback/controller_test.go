package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"peerplay/internal/cleanup"
	"peerplay/internal/domain"
	"peerplay/internal/domain/ports"
	"peerplay/internal/readiness"
)

type fakeSession struct {
	id       string
	file     domain.FileRef
	dataPath string
	buffered atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32

	selectErr error
}

func newFakeSession(id, dataPath string, length int64) *fakeSession {
	return &fakeSession{
		id:       id,
		file:     domain.FileRef{Path: "movie.mkv", Length: length},
		dataPath: dataPath,
		done:     make(chan struct{}),
	}
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) SelectFile() (domain.FileRef, error) {
	if f.selectErr != nil {
		return domain.FileRef{}, f.selectErr
	}
	return f.file, nil
}

func (f *fakeSession) File() domain.FileRef { return f.file }

func (f *fakeSession) SetSequentialPriority(int64) uint64 { return 1 }

func (f *fakeSession) CompleteSeek(uint64) {}

func (f *fakeSession) BufferedFrom(offset int64) int64 {
	b := f.buffered.Load()
	if offset >= b {
		return 0
	}
	return b - offset
}

func (f *fakeSession) NewReader() (ports.StreamReader, error) { return nil, domain.ErrSessionClosed }

func (f *fakeSession) Phase() domain.SessionPhase { return domain.PhaseDownloading }

func (f *fakeSession) Progress() domain.Progress {
	return domain.Progress{SessionID: f.id, TotalBytes: f.file.Length, Downloaded: f.buffered.Load()}
}

func (f *fakeSession) DataPath() string { return f.dataPath }

func (f *fakeSession) Done() <-chan struct{} { return f.done }

func (f *fakeSession) Close() error {
	f.closes.Add(1)
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeSession) closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

type fakeEngine struct {
	mu       sync.Mutex
	sessions []*fakeSession
	next     *fakeSession
	openErr  error
	opens    atomic.Int32
}

func (e *fakeEngine) Open(_ context.Context, _ domain.SourceDescriptor) (ports.Session, error) {
	e.opens.Add(1)
	if e.openErr != nil {
		return nil, e.openErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.next
	e.sessions = append(e.sessions, s)
	return s, nil
}

func (e *fakeEngine) Close() error { return nil }

type fakeServer struct {
	mu       sync.Mutex
	attached []string
	detached []string
}

func (s *fakeServer) Attach(session ports.Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = append(s.attached, session.ID())
	return "http://127.0.0.1:3131/stream/" + session.ID()
}

func (s *fakeServer) Detach(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = append(s.detached, sessionID)
}

func (s *fakeServer) detachCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.detached)
}

type fakeProcess struct {
	exit     chan struct{}
	exitOnce sync.Once
	kills    atomic.Int32
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{exit: make(chan struct{})}
}

func (p *fakeProcess) Wait() error {
	<-p.exit
	return nil
}

func (p *fakeProcess) Kill() error {
	p.kills.Add(1)
	p.exitOnce.Do(func() { close(p.exit) })
	return nil
}

// exitNormally simulates the user quitting the player.
func (p *fakeProcess) exitNormally() {
	p.exitOnce.Do(func() { close(p.exit) })
}

type fakeLauncher struct {
	mu        sync.Mutex
	launched  []string
	processes []*fakeProcess
	launchErr error
}

func (l *fakeLauncher) Launch(_ context.Context, mediaURL string) (PlayerProcess, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	proc := newFakeProcess()
	l.launched = append(l.launched, mediaURL)
	l.processes = append(l.processes, proc)
	return proc, nil
}

func (l *fakeLauncher) lastProcess() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.processes) == 0 {
		return nil
	}
	return l.processes[len(l.processes)-1]
}

func (l *fakeLauncher) urls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.launched...)
}

type fixture struct {
	engine   *fakeEngine
	server   *fakeServer
	launcher *fakeLauncher
	ctrl     *Controller
}

func newFixture(t *testing.T, gate *readiness.Gate, degraded bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := &fakeEngine{}
	server := &fakeServer{}
	launcher := &fakeLauncher{}
	ctrl := New(Deps{
		Engine:           engine,
		Server:           server,
		Gate:             gate,
		Launcher:         launcher,
		Cleanup:          &cleanup.Policy{Mode: cleanup.ModeAlways, Logger: logger},
		Logger:           logger,
		DegradedStart:    degraded,
		ProgressInterval: 10 * time.Millisecond,
	})
	return &fixture{engine: engine, server: server, launcher: launcher, ctrl: ctrl}
}

func readyGate() *readiness.Gate {
	return &readiness.Gate{
		MinBufferBytes:   1,
		MinBufferSeconds: 0.01,
		PollInterval:     5 * time.Millisecond,
		Timeout:          100 * time.Millisecond,
	}
}

func seedSession(t *testing.T, id string) *fakeSession {
	t.Helper()
	dir := filepath.Join(t.TempDir(), id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	s := newFakeSession(id, dir, 1<<20)
	s.buffered.Store(1 << 20)
	return s
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback teardown")
	}
}

func TestStartPlaysAndTearsDownOnPlayerExit(t *testing.T) {
	f := newFixture(t, readyGate(), false)
	session := seedSession(t, "sess-1")
	f.engine.next = session

	h, err := f.ctrl.Start(context.Background(), StartRequest{
		Source: domain.SourceDescriptor{Title: "Movie", Magnet: "magnet:?xt=urn:btih:abc"},
		Mode:   domain.ModeP2P,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if status, _ := h.Status(); status != domain.StatusPlaying {
		t.Fatalf("status = %q, want playing", status)
	}
	if urls := f.launcher.urls(); len(urls) != 1 || urls[0] != "http://127.0.0.1:3131/stream/sess-1" {
		t.Fatalf("player launched with %v", urls)
	}

	f.launcher.lastProcess().exitNormally()
	waitDone(t, h)

	if !session.closed() {
		t.Fatal("session not closed after player exit")
	}
	if f.server.detachCount() != 1 {
		t.Fatalf("detach count = %d, want 1", f.server.detachCount())
	}
	if _, err := os.Stat(session.dataPath); !os.IsNotExist(err) {
		t.Fatalf("session data not cleaned up: %v", err)
	}
	if status, reason := h.Status(); status != domain.StatusEnded || reason != nil {
		t.Fatalf("final status = (%q, %v), want (ended, nil)", status, reason)
	}
	if f.ctrl.Active() != nil {
		t.Fatal("controller still reports an active playback")
	}
}

func TestCancelKillsPlayerThenSession(t *testing.T) {
	f := newFixture(t, readyGate(), false)
	session := seedSession(t, "sess-1")
	f.engine.next = session

	h, err := f.ctrl.Start(context.Background(), StartRequest{
		Source: domain.SourceDescriptor{Title: "Movie"},
		Mode:   domain.ModeP2P,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.Cancel()
	waitDone(t, h)

	if f.launcher.lastProcess().kills.Load() == 0 {
		t.Fatal("player was not killed")
	}
	if !session.closed() {
		t.Fatal("session not closed after cancel")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t, readyGate(), false)
	session := seedSession(t, "sess-1")
	f.engine.next = session

	h, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeP2P})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Cancel()
		}()
	}
	f.launcher.lastProcess().exitNormally()
	wg.Wait()
	waitDone(t, h)

	if f.server.detachCount() != 1 {
		t.Fatalf("teardown ran %d times, want once", f.server.detachCount())
	}
}

func TestSecondStartReplacesFirst(t *testing.T) {
	f := newFixture(t, readyGate(), false)
	first := seedSession(t, "sess-1")
	f.engine.next = first

	h1, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeP2P})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second := seedSession(t, "sess-2")
	f.engine.next = second

	h2, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeP2P})
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}

	waitDone(t, h1)
	if !first.closed() {
		t.Fatal("first session not closed before second started")
	}
	if second.closed() {
		t.Fatal("second session should still be open")
	}
	if f.ctrl.Active() != h2 {
		t.Fatal("active handle is not the second playback")
	}

	h2.Cancel()
	waitDone(t, h2)
}

func TestStartFailsWhenOpenFails(t *testing.T) {
	f := newFixture(t, readyGate(), false)
	f.engine.openErr = domain.ErrSourceUnavailable

	_, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeP2P})
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if f.ctrl.Active() != nil {
		t.Fatal("failed start left an active handle")
	}
}

func TestStartFailsWhenNoPlayableFile(t *testing.T) {
	f := newFixture(t, readyGate(), false)
	session := seedSession(t, "sess-1")
	session.selectErr = domain.ErrNoPlayableFile
	f.engine.next = session

	_, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeP2P})
	if !errors.Is(err, domain.ErrNoPlayableFile) {
		t.Fatalf("err = %v, want ErrNoPlayableFile", err)
	}
	if !session.closed() {
		t.Fatal("session not released after selection failure")
	}
}

func TestBufferTimeoutStrictFails(t *testing.T) {
	gate := &readiness.Gate{
		MinBufferBytes: 1 << 20,
		PollInterval:   5 * time.Millisecond,
		Timeout:        50 * time.Millisecond,
	}
	f := newFixture(t, gate, false)
	session := seedSession(t, "sess-1")
	session.buffered.Store(0)
	f.engine.next = session

	_, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeP2P})
	if !errors.Is(err, domain.ErrBufferTimeout) {
		t.Fatalf("err = %v, want ErrBufferTimeout", err)
	}
	if !session.closed() {
		t.Fatal("session not released after buffer timeout")
	}
	if len(f.launcher.urls()) != 0 {
		t.Fatal("player must not launch on a strict buffer timeout")
	}
}

func TestBufferTimeoutDegradedStarts(t *testing.T) {
	gate := &readiness.Gate{
		MinBufferBytes: 1 << 20,
		PollInterval:   5 * time.Millisecond,
		Timeout:        50 * time.Millisecond,
	}
	f := newFixture(t, gate, true)
	session := newFakeSession("sess-1", filepath.Join(t.TempDir(), "sess-1"), 4<<20)
	session.buffered.Store(64 << 10) // some data, below threshold
	f.engine.next = session

	h, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeP2P})
	if err != nil {
		t.Fatalf("degraded start failed: %v", err)
	}
	if status, _ := h.Status(); status != domain.StatusPlaying {
		t.Fatalf("status = %q, want playing", status)
	}

	h.Cancel()
	waitDone(t, h)
}

func TestDegradedNeverStartsWithNothingBuffered(t *testing.T) {
	gate := &readiness.Gate{
		MinBufferBytes: 1 << 20,
		PollInterval:   5 * time.Millisecond,
		Timeout:        50 * time.Millisecond,
	}
	f := newFixture(t, gate, true)
	session := newFakeSession("sess-1", filepath.Join(t.TempDir(), "sess-1"), 4<<20)
	f.engine.next = session

	_, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeP2P})
	if !errors.Is(err, domain.ErrBufferTimeout) {
		t.Fatalf("err = %v, want ErrBufferTimeout", err)
	}
}

func TestCachedModeSkipsSwarm(t *testing.T) {
	f := newFixture(t, readyGate(), false)

	h, err := f.ctrl.Start(context.Background(), StartRequest{
		Source:      domain.SourceDescriptor{Title: "Movie"},
		Mode:        domain.ModeCached,
		ResolvedURL: "https://cache.example/dl/movie.mkv",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if f.engine.opens.Load() != 0 {
		t.Fatal("cached mode must not touch the swarm engine")
	}
	if urls := f.launcher.urls(); len(urls) != 1 || urls[0] != "https://cache.example/dl/movie.mkv" {
		t.Fatalf("player launched with %v", urls)
	}

	f.launcher.lastProcess().exitNormally()
	waitDone(t, h)
	if status, _ := h.Status(); status != domain.StatusEnded {
		t.Fatalf("status = %q, want ended", status)
	}
}

func TestCachedModeRequiresResolvedURL(t *testing.T) {
	f := newFixture(t, readyGate(), false)
	_, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeCached})
	if err == nil {
		t.Fatal("expected error for cached start without a URL")
	}
}

func TestStartFailsWhenPlayerMissing(t *testing.T) {
	f := newFixture(t, readyGate(), false)
	f.launcher.launchErr = domain.ErrPlayerNotFound
	session := seedSession(t, "sess-1")
	f.engine.next = session

	_, err := f.ctrl.Start(context.Background(), StartRequest{Mode: domain.ModeP2P})
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("err = %v, want ErrPlayerNotFound", err)
	}
	if !session.closed() {
		t.Fatal("session not released after launch failure")
	}
}

func TestStopWithoutActivePlayback(t *testing.T) {
	f := newFixture(t, readyGate(), false)
	if err := f.ctrl.Stop(); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("err = %v, want ErrNoActiveSession", err)
	}
}
