package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bundle size stages.
const (
	StagePlain    = "plain"
	StageMinified = "minified"
)

// Metrics holds the Prometheus metrics of one build run. Each instance owns
// its registry so several runs in one process never collide on registration.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	documentsProcessed prometheus.Counter
	bundlesBuilt       prometheus.Counter
	bundlesReused      prometheus.Counter

	compressorInvocations  *prometheus.CounterVec
	compressionDiagnostics *prometheus.CounterVec
	bundleSize             *prometheus.HistogramVec

	runDuration prometheus.Gauge
}

// NewMetrics creates and registers all build metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		documentsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "webminifier_documents_processed_total",
			Help: "Total number of HTML documents rewritten",
		}),
		bundlesBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "webminifier_bundles_built_total",
			Help: "Total number of bundles concatenated in this run",
		}),
		bundlesReused: factory.NewCounter(prometheus.CounterOpts{
			Name: "webminifier_bundles_reused_total",
			Help: "Total number of bundles found on disk and not rebuilt",
		}),
		compressorInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webminifier_compressor_invocations_total",
				Help: "Total number of compressor invocations",
			},
			[]string{"compressor"},
		),
		compressionDiagnostics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webminifier_compression_diagnostics_total",
				Help: "Total number of diagnostics reported by compressors",
			},
			[]string{"severity"},
		),
		bundleSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webminifier_bundle_size_bytes",
				Help:    "Bundle size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"stage"},
		),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webminifier_run_duration_seconds",
			Help: "Duration of the last build run in seconds",
		}),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordDocument records a rewritten document
func (m *Metrics) RecordDocument() {
	if m == nil {
		return
	}
	m.documentsProcessed.Inc()
}

// RecordBundle records a planned bundle, built or reused
func (m *Metrics) RecordBundle(preexisting bool) {
	if m == nil {
		return
	}
	if preexisting {
		m.bundlesReused.Inc()
	} else {
		m.bundlesBuilt.Inc()
	}
}

// RecordCompression records a compressor invocation and the bundle sizes on
// both sides of it
func (m *Metrics) RecordCompression(compressor string, sizeBefore, sizeAfter int64) {
	if m == nil {
		return
	}
	m.compressorInvocations.WithLabelValues(compressor).Inc()
	m.bundleSize.WithLabelValues(StagePlain).Observe(float64(sizeBefore))
	if sizeAfter > 0 {
		m.bundleSize.WithLabelValues(StageMinified).Observe(float64(sizeAfter))
	}
}

// RecordDiagnostics records compressor diagnostics of one severity
func (m *Metrics) RecordDiagnostics(severity string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.compressionDiagnostics.WithLabelValues(severity).Add(float64(count))
}

// RecordRun records the duration of a finished run
func (m *Metrics) RecordRun(startTime time.Time) {
	if m == nil {
		return
	}
	m.runDuration.Set(time.Since(startTime).Seconds())
}

// WriteTextfile writes the metrics in the node exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
