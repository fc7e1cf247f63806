package ports

import (
	"context"

	"peerplay/internal/domain"
)

// Engine abstracts the swarm client so the serving and lifecycle logic never
// touches peer or piece internals directly.
type Engine interface {
	// Open adds the source to the swarm and blocks until metadata is
	// available or the open timeout elapses (domain.ErrSourceUnavailable).
	Open(ctx context.Context, src domain.SourceDescriptor) (Session, error)
	Close() error
}
