package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Bundle metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Installed         prometheus.Gauge
	ExtractedFiles    prometheus.Counter
	ExtractedBytes    prometheus.Counter
	Reloads           prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates a metrics collector registered on reg. A nil reg uses
// the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundles_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundles_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Bundle metrics
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundles_operations_total",
				Help: "Total number of bundle operations",
			},
			[]string{"op", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundles_operation_duration_seconds",
				Help:    "Bundle operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15, 60},
			},
			[]string{"op"},
		),
		Installed: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bundles_installed",
				Help: "Number of installed bundle versions, excluding base",
			},
		),
		ExtractedFiles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bundles_extracted_files_total",
				Help: "Total number of files written by payload extraction",
			},
		),
		ExtractedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bundles_extracted_bytes_total",
				Help: "Total number of bytes written by payload extraction",
			},
		),
		Reloads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bundles_reloads_total",
				Help: "Total number of host reloads requested",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bundles_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "bundles_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOperation records a bundle operation outcome
func (m *Metrics) RecordOperation(op, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, status).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetInstalled sets the number of installed versions
func (m *Metrics) SetInstalled(count int) {
	if m == nil {
		return
	}
	m.Installed.Set(float64(count))
}

// AddExtracted records files and bytes written by an extraction
func (m *Metrics) AddExtracted(files, bytes int64) {
	if m == nil {
		return
	}
	m.ExtractedFiles.Add(float64(files))
	m.ExtractedBytes.Add(float64(bytes))
}

// RecordReload counts a host reload
func (m *Metrics) RecordReload() {
	if m == nil {
		return
	}
	m.Reloads.Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
