package ports

import (
	"context"

	"peerplay/internal/domain"
)

// Resolver turns a source into a directly playable URL via the premium
// cache service (cached mode).
type Resolver interface {
	Resolve(ctx context.Context, src domain.SourceDescriptor) (url string, err error)
	Enabled() bool
}

// SourceProvider lists torrent-like sources for a piece of media.
type SourceProvider interface {
	MovieSources(ctx context.Context, imdbID string) ([]domain.SourceDescriptor, error)
	EpisodeSources(ctx context.Context, imdbID string, season, episode int) ([]domain.SourceDescriptor, error)
}
