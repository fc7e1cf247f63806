package domain

import "time"

// PlaybackStatus is what the caller-facing handle reports to the UI layer.
type PlaybackStatus string

const (
	StatusBuffering PlaybackStatus = "buffering"
	StatusPlaying   PlaybackStatus = "playing"
	StatusEnded     PlaybackStatus = "ended"
	StatusFailed    PlaybackStatus = "failed"
)

// Progress is a point-in-time snapshot of an active acquisition, emitted for
// optional UI feedback.
type Progress struct {
	SessionID      string       `json:"sessionId"`
	Phase          SessionPhase `json:"phase"`
	File           string       `json:"file,omitempty"`
	TotalBytes     int64        `json:"totalBytes"`
	Downloaded     int64        `json:"downloadedBytes"`
	BufferedPrefix int64        `json:"bufferedPrefixBytes"`
	DownloadSpeed  int64        `json:"downloadSpeed"`
	Peers          int          `json:"peers"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Percent returns download progress in [0,100].
func (p Progress) Percent() float64 {
	if p.TotalBytes <= 0 {
		return 0
	}
	return float64(p.Downloaded) / float64(p.TotalBytes) * 100
}
