// Package metrics provides Prometheus-based metrics collection for scanfinder.
// A batch run records per-probe outcomes, batch durations and sanitizer
// rejections, and can export everything as a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all scanfinder metrics
	namespace = "scanfinder"

	// Subsystems
	subsystemProbe   = "probe"
	subsystemBatch   = "batch"
	subsystemTargets = "targets"
)

// Recorder is the set of observations the orchestrator and sanitizer emit.
type Recorder interface {
	ObserveProbe(mode, result string, duration time.Duration)
	SetActiveProbes(mode string, count int)
	ObserveBatch(mode string, total, success int, duration time.Duration)
	AddIgnoredTargets(reason string, count int)
}

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	activeProbes  *prometheus.GaugeVec

	batchesTotal   *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec
	batchHostsLast *prometheus.GaugeVec

	targetsIgnored *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ Recorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		registry: registry,
	}

	pm.initProbeMetrics()
	pm.initBatchMetrics()
	pm.initTargetMetrics()

	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// initProbeMetrics initializes per-host probe metrics
func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Total number of host probes by mode and result",
		},
		[]string{"mode", "result"},
	)

	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of a single host probe in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
		},
		[]string{"mode"},
	)

	pm.activeProbes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "active",
			Help:      "Number of probes currently waiting on the scan engine",
		},
		[]string{"mode"},
	)
}

// initBatchMetrics initializes orchestration pass metrics
func (pm *PrometheusMetrics) initBatchMetrics() {
	pm.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemBatch,
			Name:      "total",
			Help:      "Total number of completed orchestration passes by mode",
		},
		[]string{"mode"},
	)

	pm.batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemBatch,
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of an orchestration pass in seconds",
			Buckets:   []float64{1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0, 1800.0, 3600.0},
		},
		[]string{"mode"},
	)

	pm.batchHostsLast = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemBatch,
			Name:      "hosts",
			Help:      "Host counts of the most recent pass by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)
}

// initTargetMetrics initializes sanitizer metrics
func (pm *PrometheusMetrics) initTargetMetrics() {
	pm.targetsIgnored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemTargets,
			Name:      "ignored_total",
			Help:      "Input lines rejected by the sanitizer by reason",
		},
		[]string{"reason"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(pm.probesTotal)
	pm.registry.MustRegister(pm.probeDuration)
	pm.registry.MustRegister(pm.activeProbes)

	pm.registry.MustRegister(pm.batchesTotal)
	pm.registry.MustRegister(pm.batchDuration)
	pm.registry.MustRegister(pm.batchHostsLast)

	pm.registry.MustRegister(pm.targetsIgnored)
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// ObserveProbe records one finished probe
func (pm *PrometheusMetrics) ObserveProbe(mode, result string, duration time.Duration) {
	pm.probesTotal.WithLabelValues(mode, result).Inc()
	pm.probeDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// SetActiveProbes sets the in-flight probe gauge
func (pm *PrometheusMetrics) SetActiveProbes(mode string, count int) {
	pm.activeProbes.WithLabelValues(mode).Set(float64(count))
}

// ObserveBatch records a completed orchestration pass
func (pm *PrometheusMetrics) ObserveBatch(mode string, total, success int, duration time.Duration) {
	pm.batchesTotal.WithLabelValues(mode).Inc()
	pm.batchDuration.WithLabelValues(mode).Observe(duration.Seconds())
	pm.batchHostsLast.WithLabelValues(mode, "success").Set(float64(success))
	pm.batchHostsLast.WithLabelValues(mode, "failure").Set(float64(total - success))
}

// AddIgnoredTargets counts sanitizer rejections
func (pm *PrometheusMetrics) AddIgnoredTargets(reason string, count int) {
	if count <= 0 {
		return
	}
	pm.targetsIgnored.WithLabelValues(reason).Add(float64(count))
}

// WriteTextfile writes all gathered metrics to path in the Prometheus text
// exposition format, atomically replacing any previous file.
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, pm.registry)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveProbe(string, string, time.Duration) {}
func (Nop) SetActiveProbes(string, int) {}
func (Nop) ObserveBatch(string, int, int, time.Duration) {}
func (Nop) AddIgnoredTargets(string, int) {}
