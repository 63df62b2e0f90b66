// Package metrics provides Prometheus-based metrics collection for scanwrap.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all scanwrap metrics
	namespace = "scanwrap"

	// Subsystems
	subsystemSession = "session"
	subsystemReport  = "report"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Session metrics
	sessionsTotal   *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	activeSessions  prometheus.Gauge

	// Report metrics
	hostsParsed *prometheus.CounterVec
	portsParsed *prometheus.CounterVec
	fileErrors  *prometheus.CounterVec

	startTime time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initSessionMetrics()
	pm.initReportMetrics()
	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// initSessionMetrics initializes session lifecycle metrics
func (pm *PrometheusMetrics) initSessionMetrics() {
	pm.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "total",
			Help:      "Total number of completed scan sessions by status",
		},
		[]string{"status"},
	)

	pm.sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "duration_seconds",
			Help:      "Wall time of scan sessions from start to parsed report",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0, 1800.0},
		},
	)

	pm.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "active",
			Help:      "Number of scan sessions currently running",
		},
	)
}

// initReportMetrics initializes report parsing metrics
func (pm *PrometheusMetrics) initReportMetrics() {
	pm.hostsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemReport,
			Name:      "hosts_total",
			Help:      "Total number of host records parsed by host status",
		},
		[]string{"status"},
	)

	pm.portsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemReport,
			Name:      "ports_total",
			Help:      "Total number of categorized ports parsed by state",
		},
		[]string{"state"},
	)

	pm.fileErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemReport,
			Name:      "file_errors_total",
			Help:      "Total number of report files that could not be read or parsed",
		},
		[]string{"kind"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(pm.sessionsTotal)
	pm.registry.MustRegister(pm.sessionDuration)
	pm.registry.MustRegister(pm.activeSessions)
	pm.registry.MustRegister(pm.hostsParsed)
	pm.registry.MustRegister(pm.portsParsed)
	pm.registry.MustRegister(pm.fileErrors)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// GetUptime returns the time since the metrics instance was created
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// SessionStarted increments the active session gauge
func (pm *PrometheusMetrics) SessionStarted() {
	pm.activeSessions.Inc()
}

// SessionFinished records a completed session
func (pm *PrometheusMetrics) SessionFinished(status string, duration time.Duration) {
	pm.activeSessions.Dec()
	pm.sessionsTotal.WithLabelValues(status).Inc()
	pm.sessionDuration.Observe(duration.Seconds())
}

// HostsParsed adds parsed hosts for a status
func (pm *PrometheusMetrics) HostsParsed(status string, count int) {
	pm.hostsParsed.WithLabelValues(status).Add(float64(count))
}

// PortsParsed adds parsed ports for a state category
func (pm *PrometheusMetrics) PortsParsed(state string, count int) {
	pm.portsParsed.WithLabelValues(state).Add(float64(count))
}

// ReportFileError counts a report file failure
func (pm *PrometheusMetrics) ReportFileError(kind string) {
	pm.fileErrors.WithLabelValues(kind).Inc()
}

var (
	globalMetrics *PrometheusMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the global Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
