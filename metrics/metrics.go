// Package metrics exposes Prometheus counters and gauges for the encoding
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the worker pool.
type Metrics struct {
	registry             *prometheus.Registry
	chunksCompletedTotal prometheus.Counter
	chunksFailedTotal    prometheus.Counter
	encodeRetriesTotal   prometheus.Counter
	frameMismatchesTotal prometheus.Counter
	framesEncodedTotal   prometheus.Counter
	activeWorkers        prometheus.Gauge
}

// New creates and registers Prometheus metrics for the engine.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	chunksCompletedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parenc_chunks_completed_total",
		Help: "Total number of chunks verified and checkpointed",
	})
	chunksFailedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parenc_chunks_failed_total",
		Help: "Total number of chunks that exhausted their encode retries",
	})
	encodeRetriesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parenc_encode_retries_total",
		Help: "Total number of failed encode attempts that were retried",
	})
	frameMismatchesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parenc_frame_mismatches_total",
		Help: "Total number of encoded chunks whose frame count disagreed with the expected count",
	})
	framesEncodedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parenc_frames_encoded_total",
		Help: "Total number of verified output frames",
	})
	activeWorkers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parenc_active_workers",
		Help: "Number of worker threads currently consuming chunks",
	})

	registry.MustRegister(
		chunksCompletedTotal,
		chunksFailedTotal,
		encodeRetriesTotal,
		frameMismatchesTotal,
		framesEncodedTotal,
		activeWorkers,
	)

	return &Metrics{
		registry:             registry,
		chunksCompletedTotal: chunksCompletedTotal,
		chunksFailedTotal:    chunksFailedTotal,
		encodeRetriesTotal:   encodeRetriesTotal,
		frameMismatchesTotal: frameMismatchesTotal,
		framesEncodedTotal:   framesEncodedTotal,
		activeWorkers:        activeWorkers,
	}
}

// IncChunksCompleted increments the completed-chunks counter.
func (m *Metrics) IncChunksCompleted() {
	m.chunksCompletedTotal.Inc()
}

// IncChunksFailed increments the failed-chunks counter.
func (m *Metrics) IncChunksFailed() {
	m.chunksFailedTotal.Inc()
}

// IncEncodeRetries increments the retried-attempts counter.
func (m *Metrics) IncEncodeRetries() {
	m.encodeRetriesTotal.Inc()
}

// IncFrameMismatches increments the frame-mismatch counter.
func (m *Metrics) IncFrameMismatches() {
	m.frameMismatchesTotal.Inc()
}

// AddFramesEncoded adds n verified frames to the frame counter.
func (m *Metrics) AddFramesEncoded(n int) {
	m.framesEncodedTotal.Add(float64(n))
}

// WorkerStarted increments the active-workers gauge.
func (m *Metrics) WorkerStarted() {
	m.activeWorkers.Inc()
}

// WorkerStopped decrements the active-workers gauge.
func (m *Metrics) WorkerStopped() {
	m.activeWorkers.Dec()
}

// Handler returns an http.Handler that serves the engine's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
