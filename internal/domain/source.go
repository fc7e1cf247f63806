package domain

import "strings"

// PlayMode selects how a chosen source gets turned into a playable URL.
type PlayMode string

const (
	// ModeP2P streams directly from the swarm through the local HTTP server.
	ModeP2P PlayMode = "p2p"
	// ModeCached resolves a direct URL from the premium cache service,
	// bypassing the swarm and the local server entirely.
	ModeCached PlayMode = "cached"
)

// SourceDescriptor identifies a torrent-like source. It is produced by the
// source-list provider and consumed read-only by the streaming core.
type SourceDescriptor struct {
	Magnet   string `json:"magnet"`
	InfoHash string `json:"infoHash"`
	Title    string `json:"title"`
	Size     int64  `json:"size"`
	Seeders  int    `json:"seeders"`
	Quality  string `json:"quality"`
	Provider string `json:"provider"`
	// FileIdx is the provider's hint for the file inside the torrent;
	// -1 when the provider did not say.
	FileIdx int `json:"fileIdx"`
}

// IsMagnet reports whether a raw play argument looks like a magnet link.
func IsMagnet(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "magnet:?")
}
