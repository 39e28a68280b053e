package live

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of the realtime session.
type Metrics struct {
	registry *prometheus.Registry

	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	AudioBlocksSent prometheus.Counter
	FramesSent      prometheus.Counter
	ChunksPlayed    prometheus.Counter
	Interruptions   prometheus.Counter
}

// NewMetrics creates and registers the session metrics.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sensei"
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_sessions_total",
			Help:      "Total number of live mentoring sessions started",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of currently active live sessions",
		}),
		AudioBlocksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_audio_blocks_sent_total",
			Help:      "Microphone PCM blocks sent to the model",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_video_frames_sent_total",
			Help:      "Camera frames sent to the model",
		}),
		ChunksPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_audio_chunks_played_total",
			Help:      "Model audio chunks scheduled for playback",
		}),
		Interruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_interruptions_total",
			Help:      "Barge-in interruptions received from the model",
		}),
	}

	registry.MustRegister(
		m.SessionsTotal,
		m.SessionsActive,
		m.AudioBlocksSent,
		m.FramesSent,
		m.ChunksPlayed,
		m.Interruptions,
	)
	return m
}

// Handler exposes the metrics for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
