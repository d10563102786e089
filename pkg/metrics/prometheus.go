package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics contains all Prometheus metrics for a practice client or server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Channel metrics
	ChannelConnects  *prometheus.CounterVec
	ChannelCloses    prometheus.Counter
	MessagesReceived *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec

	// Audio metrics
	ChunksSent    prometheus.Counter
	AudioBytes    prometheus.Counter
	FramesDropped prometheus.Counter
	ChunkSamples  prometheus.Histogram

	// Session metrics
	Phase           prometheus.Gauge
	Turns           prometheus.Counter
	FeedbackLatency prometheus.Histogram
	Scores          prometheus.Histogram

	// Practice server metrics
	ActiveSessions prometheus.Gauge
	TurnsScored    prometheus.Counter
}

// NewMetrics creates all metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ChannelConnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "practice_channel_connects_total",
			Help: "Total number of channel open attempts by result",
		}, []string{"result"}),
		ChannelCloses: factory.NewCounter(prometheus.CounterOpts{
			Name: "practice_channel_closes_total",
			Help: "Total number of channel closes",
		}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "practice_messages_received_total",
			Help: "Total number of control messages received by type",
		}, []string{"type"}),
		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "practice_messages_sent_total",
			Help: "Total number of control messages sent by type",
		}, []string{"type"}),

		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "practice_audio_chunks_sent_total",
			Help: "Total number of PCM16 chunks handed to the channel",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "practice_audio_bytes_total",
			Help: "Total number of PCM16 bytes handed to the channel",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "practice_frames_dropped_total",
			Help: "Total number of captured frames dropped because the pipeline queue was full",
		}),
		ChunkSamples: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "practice_chunk_samples",
			Help:    "Samples per emitted chunk at 16 kHz",
			Buckets: prometheus.LinearBuckets(240, 240, 8), // 15ms to 120ms
		}),

		Phase: factory.NewGauge(prometheus.GaugeOpts{
			Name: "practice_session_phase",
			Help: "Current session phase as its numeric code",
		}),
		Turns: factory.NewCounter(prometheus.CounterOpts{
			Name: "practice_turns_total",
			Help: "Total number of recorded turns ended with end-turn",
		}),
		FeedbackLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "practice_feedback_latency_seconds",
			Help:    "Time from end-turn to the final response",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}),
		Scores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "practice_scores",
			Help:    "Pronunciation scores received or computed",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "practice_server_active_sessions",
			Help: "Current number of open practice channels",
		}),
		TurnsScored: factory.NewCounter(prometheus.CounterOpts{
			Name: "practice_server_turns_scored_total",
			Help: "Total number of turns scored by the practice server",
		}),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordConnect counts one channel open attempt
func (m *Metrics) RecordConnect(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.ChannelConnects.WithLabelValues(result).Inc()
}

// RecordClose counts one channel close
func (m *Metrics) RecordClose() {
	if m == nil {
		return
	}
	m.ChannelCloses.Inc()
}

// RecordMessageReceived counts one inbound control message
func (m *Metrics) RecordMessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordMessageSent counts one outbound control message
func (m *Metrics) RecordMessageSent(msgType string) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(msgType).Inc()
}

// RecordChunk counts one PCM16 chunk of the given sample count
func (m *Metrics) RecordChunk(samples int) {
	if m == nil {
		return
	}
	m.ChunksSent.Inc()
	m.AudioBytes.Add(float64(samples * 2))
	m.ChunkSamples.Observe(float64(samples))
}

// RecordFrameDropped counts one dropped capture frame
func (m *Metrics) RecordFrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// SetPhase exports the current session phase
func (m *Metrics) SetPhase(code int) {
	if m == nil {
		return
	}
	m.Phase.Set(float64(code))
}

// RecordTurn counts one ended turn
func (m *Metrics) RecordTurn() {
	if m == nil {
		return
	}
	m.Turns.Inc()
}

// RecordFeedback observes the latency between end-turn and the final response
func (m *Metrics) RecordFeedback(latency time.Duration) {
	if m == nil {
		return
	}
	m.FeedbackLatency.Observe(latency.Seconds())
}

// RecordScore observes one pronunciation score
func (m *Metrics) RecordScore(score float64) {
	if m == nil {
		return
	}
	m.Scores.Observe(score)
}

// SessionOpened increments the active session gauge
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionClosed decrements the active session gauge
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// RecordTurnScored counts one turn scored by the practice server
func (m *Metrics) RecordTurnScored(score float64) {
	if m == nil {
		return
	}
	m.TurnsScored.Inc()
	m.Scores.Observe(score)
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr disables it.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	if m == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
