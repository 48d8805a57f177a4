// Package metrics exposes operational counters for the agent. All recording
// methods are nil-safe so callers never need to branch on whether metrics
// are enabled.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	framesDropped   prometheus.Counter
	detections      *prometheus.CounterVec
	messagesSent    prometheus.Counter
	snapshotWrites  *prometheus.CounterVec
}

// New creates the collector set.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.framesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consult_frames_processed_total",
		Help: "Video frames run through the detection pipeline.",
	})
	m.framesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consult_frames_dropped_total",
		Help: "Video frames skipped because a detection was already in flight or encoding failed.",
	})
	m.detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consult_detections_total",
		Help: "Classifier detections by outcome.",
	}, []string{"outcome"})
	m.messagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consult_messages_sent_total",
		Help: "Consultation messages published over the data channel.",
	})
	m.snapshotWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consult_snapshot_writes_total",
		Help: "Inventory snapshot writes by status.",
	}, []string{"status"})

	m.registry.MustRegister(
		m.framesProcessed,
		m.framesDropped,
		m.detections,
		m.messagesSent,
		m.snapshotWrites,
	)
	return m
}

// FrameProcessed records one frame run through the pipeline.
func (m *Metrics) FrameProcessed() {
	if m != nil {
		m.framesProcessed.Inc()
	}
}

// FrameDropped records one skipped frame.
func (m *Metrics) FrameDropped() {
	if m != nil {
		m.framesDropped.Inc()
	}
}

// Detection records a classifier outcome ("ok" or "degraded").
func (m *Metrics) Detection(degraded bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	m.detections.WithLabelValues(outcome).Inc()
}

// MessageSent records one published consultation message.
func (m *Metrics) MessageSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

// SnapshotWrite records a snapshot persistence attempt.
func (m *Metrics) SnapshotWrite(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.snapshotWrites.WithLabelValues(status).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a /metrics endpoint on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, m *Metrics, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics endpoint listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
