package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerplay",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "peerplay",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	SessionActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peerplay",
		Name:      "session_active",
		Help:      "1 while a stream session is open, 0 otherwise.",
	})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peerplay",
		Name:      "download_speed_bytes",
		Help:      "Current swarm download speed in bytes per second.",
	})

	BufferedPrefixBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peerplay",
		Name:      "buffered_prefix_bytes",
		Help:      "Contiguous bytes buffered from the start of the selected file.",
	})

	SeekRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "peerplay",
		Name:      "seek_requests_total",
		Help:      "Range requests beyond the buffered prefix that triggered a priority reset.",
	})

	BufferTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "peerplay",
		Name:      "buffer_timeouts_total",
		Help:      "Readiness waits that timed out.",
	})

	PlaybackStartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peerplay",
		Name:      "playback_starts_total",
		Help:      "Playback starts by mode (p2p or cached).",
	}, []string{"mode"})

	PlaybackFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "peerplay",
		Name:      "playback_failures_total",
		Help:      "Playback attempts that ended in failure.",
	})
)

// Register registers all collectors with the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SessionActive,
		DownloadSpeedBytes,
		BufferedPrefixBytes,
		SeekRequestsTotal,
		BufferTimeoutsTotal,
		PlaybackStartsTotal,
		PlaybackFailuresTotal,
	)
}
