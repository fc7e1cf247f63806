package domain

import "errors"

// SessionPhase is the runtime state of a stream session.
type SessionPhase string

const (
	PhaseOpening     SessionPhase = "opening"     // Waiting for swarm metadata.
	PhaseSelecting   SessionPhase = "selecting"   // Metadata arrived, picking the principal file.
	PhaseDownloading SessionPhase = "downloading" // Fetching ahead of the read cursor.
	PhaseSeeking     SessionPhase = "seeking"     // Cursor jumped, re-prioritizing pieces.
	PhaseClosed      SessionPhase = "closed"      // Network activity stopped.
	PhaseFailed      SessionPhase = "failed"      // Acquisition failed (open timeout, storage).
)

var ErrInvalidTransition = errors.New("invalid phase transition")

// validTransitions is the adjacency list of allowed phase changes. Any phase
// may additionally transition to Closed on explicit cancellation.
var validTransitions = map[SessionPhase][]SessionPhase{
	PhaseOpening:     {PhaseSelecting, PhaseFailed},
	PhaseSelecting:   {PhaseDownloading, PhaseFailed},
	PhaseDownloading: {PhaseSeeking},
	PhaseSeeking:     {PhaseDownloading},
	PhaseClosed:      {},
	PhaseFailed:      {},
}

// CanTransition reports whether moving from one phase to another is valid.
func CanTransition(from, to SessionPhase) bool {
	if from == to {
		return true
	}
	if to == PhaseClosed {
		return from != PhaseClosed
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
