// Package metrics exposes Prometheus metrics for the daemon.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. It implements transcribe.Observer.
type Metrics struct {
	registry *prometheus.Registry

	Recordings        *prometheus.CounterVec
	RecordingDuration prometheus.Histogram

	TranscriptionRequests *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	TranscriptionRetries  prometheus.Counter
	UploadSize            prometheus.Histogram

	Insertions *prometheus.CounterVec
	Errors     *prometheus.CounterVec

	EditorConnected prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Recordings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gostt_recordings_total",
			Help: "Finished recordings by stop reason",
		}, []string{"reason"}),
		RecordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gostt_recording_duration_seconds",
			Help:    "Length of captured audio",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		TranscriptionRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gostt_transcription_requests_total",
			Help: "Transcription API attempts by outcome",
		}, []string{"outcome"}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gostt_transcription_duration_seconds",
			Help:    "Duration of transcription API attempts",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		TranscriptionRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_transcription_retries_total",
			Help: "Transcription attempts that were retries",
		}),
		UploadSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gostt_upload_size_bytes",
			Help:    "Size of uploaded request bodies",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 11), // 16KB to ~16MB
		}),
		Insertions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gostt_insertions_total",
			Help: "Delivered transcripts by insertion mode",
		}, []string{"mode"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gostt_errors_total",
			Help: "User-visible errors by code",
		}, []string{"code"}),
		EditorConnected: f.NewGauge(prometheus.GaugeOpts{
			Name: "gostt_editor_connected",
			Help: "1 when an editor is attached",
		}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one transcription attempt.
func (m *Metrics) ObserveRequest(outcome string, elapsed time.Duration, uploadBytes int) {
	m.TranscriptionRequests.WithLabelValues(outcome).Inc()
	m.TranscriptionDuration.Observe(elapsed.Seconds())
	m.UploadSize.Observe(float64(uploadBytes))
}

// ObserveRetry counts a retry.
func (m *Metrics) ObserveRetry(int) {
	m.TranscriptionRetries.Inc()
}

// RecordRecording records a finished capture.
func (m *Metrics) RecordRecording(reason string, d time.Duration) {
	m.Recordings.WithLabelValues(reason).Inc()
	m.RecordingDuration.Observe(d.Seconds())
}

// RecordInsertion counts a delivered transcript.
func (m *Metrics) RecordInsertion(mode string) {
	m.Insertions.WithLabelValues(mode).Inc()
}

// RecordError counts a user-visible error.
func (m *Metrics) RecordError(code string) {
	m.Errors.WithLabelValues(code).Inc()
}

// SetEditorConnected sets the editor gauge.
func (m *Metrics) SetEditorConnected(connected bool) {
	if connected {
		m.EditorConnected.Set(1)
		return
	}
	m.EditorConnected.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("[metrics] serving", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
