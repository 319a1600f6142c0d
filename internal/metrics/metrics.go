package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "molpastudio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "molpastudio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "molpastudio_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Video lifecycle metrics
var (
	VideoUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "molpastudio_video_uploads_total",
			Help: "Total number of video uploads",
		},
		[]string{"status"},
	)

	VideoUploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "molpastudio_video_upload_bytes_total",
			Help: "Bytes received for upload and bytes stored after compression",
		},
		[]string{"kind"}, // "original", "compressed"
	)

	VideoDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "molpastudio_video_deletes_total",
			Help: "Total number of video deletions",
		},
		[]string{"status"},
	)

	MediaServiceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "molpastudio_media_service_duration_seconds",
			Help:    "Duration of calls to the media service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)
)

// Auth metrics
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "molpastudio_auth_attempts_total",
		Help: "Total number of sign-in attempts",
	},
	[]string{"result"},
)

// InitializeMetrics pre-populates label combinations so every series is
// exported from the first scrape.
func InitializeMetrics() {
	for _, s := range []string{"success", "failure"} {
		VideoUploadsTotal.WithLabelValues(s)
		VideoDeletesTotal.WithLabelValues(s)
		AuthAttemptsTotal.WithLabelValues(s)
	}
	VideoDeletesTotal.WithLabelValues("not_found")
	for _, k := range []string{"original", "compressed"} {
		VideoUploadBytes.WithLabelValues(k)
	}
}
