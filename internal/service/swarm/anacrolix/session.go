package anacrolix

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/google/uuid"

	"peerplay/internal/domain"
	"peerplay/internal/domain/ports"
)

type Session struct {
	engine *Engine
	t      *torrent.Torrent
	id     string
	src    domain.SourceDescriptor

	mu        sync.Mutex
	phase     domain.SessionPhase
	file      *torrent.File
	fileRef   domain.FileRef
	seekGen   uint64
	done      chan struct{}
	closeOnce sync.Once

	speedMu   sync.Mutex
	lastAt    time.Time
	lastBytes int64
	speed     int64
}

func newSession(e *Engine, t *torrent.Torrent, src domain.SourceDescriptor) *Session {
	return &Session{
		engine: e,
		t:      t,
		id:     uuid.NewString(),
		src:    src,
		phase:  domain.PhaseOpening,
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) transition(to domain.SessionPhase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(to)
}

func (s *Session) transitionLocked(to domain.SessionPhase) error {
	if s.phase == to {
		return nil
	}
	if !domain.CanTransition(s.phase, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, s.phase, to)
	}
	s.phase = to
	return nil
}

func (s *Session) Phase() domain.SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SelectFile picks the largest video file, parks all other files at priority
// none so they never consume bandwidth, and moves the session to Downloading
// with an ascending priority gradient from offset 0.
func (s *Session) SelectFile() (domain.FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == domain.PhaseClosed || s.phase == domain.PhaseFailed {
		return domain.FileRef{}, domain.ErrSessionClosed
	}
	if s.file != nil {
		return s.fileRef, nil
	}

	files := s.t.Files()
	refs := make([]domain.FileRef, 0, len(files))
	for i, f := range files {
		refs = append(refs, domain.FileRef{Index: i, Path: f.Path(), Length: f.Length()})
	}
	picked, err := pickPrincipalFile(refs)
	if err != nil {
		return domain.FileRef{}, err
	}

	for i, f := range files {
		if i != picked.Index {
			f.SetPriority(torrent.PiecePriorityNone)
		}
	}

	s.file = files[picked.Index]
	s.fileRef = picked
	if err := s.transitionLocked(domain.PhaseDownloading); err != nil {
		return domain.FileRef{}, err
	}
	s.applySequentialLocked(0)
	return picked, nil
}

func (s *Session) File() domain.FileRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileRef
}

// SetSequentialPriority re-prioritizes piece fetching to favor ascending
// order from the offset. The bands are applied before the generation is
// returned, so a caller that then waits on the readiness gate never waits
// behind stale priorities.
func (s *Session) SetSequentialPriority(fromOffset int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil || s.phase == domain.PhaseClosed || s.phase == domain.PhaseFailed {
		return s.seekGen
	}
	s.seekGen++
	if s.phase == domain.PhaseDownloading && fromOffset > 0 {
		_ = s.transitionLocked(domain.PhaseSeeking)
	}
	s.applySequentialLocked(fromOffset)
	return s.seekGen
}

func (s *Session) CompleteSeek(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.seekGen {
		return // superseded by a later seek
	}
	if s.phase == domain.PhaseSeeking {
		_ = s.transitionLocked(domain.PhaseDownloading)
	}
}

// BufferedFrom returns the longest contiguous run of completed bytes in the
// selected file starting at offset.
func (s *Session) BufferedFrom(offset int64) int64 {
	s.mu.Lock()
	file := s.file
	s.mu.Unlock()
	if file == nil || offset < 0 || offset >= file.Length() {
		return 0
	}

	info := s.t.Info()
	if info == nil {
		return 0
	}
	pieceLen := info.PieceLength
	if pieceLen <= 0 {
		return 0
	}

	first, last := pieceSpan(file.Offset(), file.Length(), pieceLen, offset)
	run := first
	for run <= last && s.t.PieceState(run).Complete {
		run++
	}
	if run == first {
		return 0
	}
	return contiguousBytes(file.Offset(), file.Length(), pieceLen, offset, run)
}

func (s *Session) NewReader() (ports.StreamReader, error) {
	s.mu.Lock()
	file := s.file
	s.mu.Unlock()
	if file == nil {
		return nil, domain.ErrNoPlayableFile
	}
	select {
	case <-s.done:
		return nil, domain.ErrSessionClosed
	default:
	}
	return file.NewReader(), nil
}

func (s *Session) Progress() domain.Progress {
	s.mu.Lock()
	file := s.file
	ref := s.fileRef
	phase := s.phase
	s.mu.Unlock()

	p := domain.Progress{
		SessionID: s.id,
		Phase:     phase,
		UpdatedAt: time.Now().UTC(),
	}
	if file == nil {
		return p
	}
	p.File = ref.Path
	p.TotalBytes = file.Length()
	p.Downloaded = file.BytesCompleted()
	p.BufferedPrefix = s.BufferedFrom(0)
	p.DownloadSpeed = s.sampleSpeed(p.Downloaded)
	p.Peers = s.t.Stats().ActivePeers
	return p
}

// sampleSpeed derives bytes/sec from completed-byte deltas between calls.
func (s *Session) sampleSpeed(completed int64) int64 {
	now := time.Now()

	s.speedMu.Lock()
	defer s.speedMu.Unlock()

	if !s.lastAt.IsZero() {
		dt := now.Sub(s.lastAt).Seconds()
		if dt > 0 {
			delta := completed - s.lastBytes
			if delta < 0 {
				delta = 0
			}
			s.speed = int64(float64(delta) / dt)
		}
	}
	s.lastAt = now
	s.lastBytes = completed
	return s.speed
}

func (s *Session) DataPath() string {
	info := s.t.Info()
	if info == nil {
		return ""
	}
	return filepath.Join(s.engine.dataDir, info.BestName())
}

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		_ = s.transitionLocked(domain.PhaseClosed)
		s.mu.Unlock()
		close(s.done)
		s.t.Drop()
		s.engine.logger.Info("session closed", "sessionId", s.id)
	})
	return nil
}

// fail marks the session failed without going through Close, used when the
// open timeout fires before the session was ever handed out.
func (s *Session) fail() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.phase = domain.PhaseFailed
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

var _ ports.Session = (*Session)(nil)
