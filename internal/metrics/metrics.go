package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus instruments for the voice pipeline.
type Metrics struct {
	RequestsReceived  prometheus.Counter
	RequestsSucceeded prometheus.Counter
	RequestsFailed    *prometheus.CounterVec
	RequestsInFlight  prometheus.Gauge

	SynthesisDuration prometheus.Histogram
	TranscodeDuration prometheus.Histogram
	VoiceNoteSize     prometheus.Histogram

	DispatchRetries prometheus.Counter
	IngestRestarts  prometheus.Counter
}

// New creates the instruments and registers them on reg. Tests pass their
// own registry so parallel packages do not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "tvb_requests_received_total",
			Help: "Total number of text-to-voice requests received",
		}),
		RequestsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "tvb_requests_succeeded_total",
			Help: "Total number of requests that produced a voice note",
		}),
		RequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tvb_requests_failed_total",
			Help: "Total number of failed requests by error kind",
		}, []string{"kind"}),
		RequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tvb_requests_in_flight",
			Help: "Current number of requests inside the pipeline",
		}),

		SynthesisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tvb_synthesis_duration_seconds",
			Help:    "Time spent rendering speech",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),
		TranscodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tvb_transcode_duration_seconds",
			Help:    "Time spent in the audio engine",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		VoiceNoteSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tvb_voice_note_size_bytes",
			Help:    "Size of delivered voice notes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		DispatchRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "tvb_dispatch_retries_total",
			Help: "Total number of voice dispatch retries",
		}),
		IngestRestarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "tvb_ingest_restarts_total",
			Help: "Total number of ingest loop restarts by the supervisor",
		}),
	}
}
