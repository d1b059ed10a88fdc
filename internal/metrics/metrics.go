// Package metrics exposes Prometheus collectors for manager runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the collectors updated by the scheduler and executor.
type Metrics struct {
	registry            *prometheus.Registry
	runDurationSeconds  prometheus.Histogram
	archivesTotal       *prometheus.CounterVec
	targetsTotal        *prometheus.CounterVec
	bytesWrittenTotal   *prometheus.CounterVec
	lastSuccessfulRunAt prometheus.Gauge
}

// New initializes a registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backupmgr_run_duration_seconds",
			Help:    "Duration of manager sweeps in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		archivesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backupmgr_archives_total",
			Help: "Archives processed by rule and status.",
		}, []string{"rule", "status"}),
		targetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backupmgr_targets_total",
			Help: "Targets processed by archive and status.",
		}, []string{"archive", "status"}),
		bytesWrittenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backupmgr_bytes_written_total",
			Help: "Bytes reported by the archiver per archive.",
		}, []string{"archive"}),
		lastSuccessfulRunAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backupmgr_last_successful_run_timestamp",
			Help: "Unix timestamp of the last fully successful sweep.",
		}),
	}

	registry.MustRegister(
		m.runDurationSeconds,
		m.archivesTotal,
		m.targetsTotal,
		m.bytesWrittenTotal,
		m.lastSuccessfulRunAt,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRunDuration records one sweep's wall-clock time.
func (m *Metrics) ObserveRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.runDurationSeconds.Observe(duration.Seconds())
}

// IncArchive counts one archive outcome.
func (m *Metrics) IncArchive(rule, status string) {
	if m == nil {
		return
	}
	m.archivesTotal.WithLabelValues(rule, status).Inc()
}

// IncTarget counts one target outcome.
func (m *Metrics) IncTarget(archiveName, status string) {
	if m == nil {
		return
	}
	m.targetsTotal.WithLabelValues(archiveName, status).Inc()
}

// AddBytesWritten accumulates archiver-reported bytes.
func (m *Metrics) AddBytesWritten(archiveName string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWrittenTotal.WithLabelValues(archiveName).Add(float64(n))
}

// SetLastSuccessfulRun marks a clean sweep.
func (m *Metrics) SetLastSuccessfulRun(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulRunAt.Set(float64(t.Unix()))
}
