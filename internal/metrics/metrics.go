package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription relay.
type Metrics struct {
	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	AudioChunks       prometheus.Counter
	ChunkSendFailures prometheus.Counter

	TranscriptEvents *prometheus.CounterVec
	ErrorEvents      prometheus.Counter
	SetupFailures    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dgrelay_sessions_active",
			Help: "Current number of active relay sessions",
		}),
		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgrelay_sessions_total",
			Help: "Total number of relay sessions by ingress",
		}, []string{"ingress"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dgrelay_session_duration_seconds",
			Help:    "Duration of relay sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		AudioChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgrelay_audio_chunks_total",
			Help: "Total number of audio chunks forwarded to Deepgram",
		}),
		ChunkSendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgrelay_chunk_send_failures_total",
			Help: "Total number of audio chunks dropped due to send failures",
		}),
		TranscriptEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgrelay_transcript_events_total",
			Help: "Total number of transcript events relayed to clients",
		}, []string{"kind"}),
		ErrorEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgrelay_error_events_total",
			Help: "Total number of error events relayed to clients",
		}),
		SetupFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgrelay_setup_failures_total",
			Help: "Total number of sessions that failed during setup",
		}),
	}
}

// RecordSessionStart marks a new session for the given ingress.
func (m *Metrics) RecordSessionStart(ingress string) {
	m.SessionsActive.Inc()
	m.SessionsTotal.WithLabelValues(ingress).Inc()
}

// RecordSessionEnd marks a finished session and records its duration.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordChunk increments the forwarded audio chunk counter.
func (m *Metrics) RecordChunk() {
	m.AudioChunks.Inc()
}

// RecordChunkSendFailure increments the dropped chunk counter.
func (m *Metrics) RecordChunkSendFailure() {
	m.ChunkSendFailures.Inc()
}

// RecordTranscript records a relayed transcript event.
func (m *Metrics) RecordTranscript(isFinal bool) {
	kind := "partial"
	if isFinal {
		kind = "final"
	}
	m.TranscriptEvents.WithLabelValues(kind).Inc()
}

// RecordError records a relayed error event.
func (m *Metrics) RecordError() {
	m.ErrorEvents.Inc()
}

// RecordSetupFailure records a session that never reached streaming.
func (m *Metrics) RecordSetupFailure() {
	m.SetupFailures.Inc()
}
