package ports

import "peerplay/internal/domain"

// Session is one active acquisition from a swarm source.
//
// SetSequentialPriority returns a seek generation; concurrent seekers use it
// to detect that a later seek superseded theirs (last seek wins for priority
// purposes). The priority change is applied before the call returns, so a
// caller that then waits on the readiness gate is never waiting behind stale
// priorities.
type Session interface {
	ID() string

	// SelectFile picks the principal media file: the largest file carrying a
	// video extension. Fails with domain.ErrNoPlayableFile when the source
	// has none.
	SelectFile() (domain.FileRef, error)
	// File returns the selected file, zero until SelectFile succeeds.
	File() domain.FileRef

	SetSequentialPriority(fromOffset int64) (generation uint64)
	// CompleteSeek moves the session back from Seeking to Downloading when
	// gen is still the current seek generation.
	CompleteSeek(gen uint64)

	// BufferedFrom returns the longest contiguous run of on-disk bytes in
	// the selected file starting at offset. BufferedFrom(0) is the buffered
	// prefix length.
	BufferedFrom(offset int64) int64

	NewReader() (StreamReader, error)

	Phase() domain.SessionPhase
	Progress() domain.Progress
	// DataPath is the on-disk location of this session's downloaded data,
	// handed to the cleanup policy after close.
	DataPath() string

	// Done is closed when the session is closed; in-flight waits select on
	// it to fail fast.
	Done() <-chan struct{}
	// Close stops network activity and releases swarm resources. Idempotent.
	Close() error
}
