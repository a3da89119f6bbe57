package worker

import (
	"newsbot/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the refresh worker.
// It embeds the standard ConfigMetrics for configuration monitoring.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total{field}
//   - worker_config_fallbacks_total{field}
//   - worker_config_fallback_active
//
// Worker-specific metrics:
//   - worker_refresh_runs_total{status}: started, success, failure, skipped
//   - worker_refresh_duration_seconds
//   - worker_refresh_sources_total{status}: fresh, stale, empty
//   - worker_refresh_last_success_timestamp
type WorkerMetrics struct {
	*config.ConfigMetrics

	RefreshRunsTotal            *prometheus.CounterVec
	RefreshDurationSeconds      prometheus.Histogram
	RefreshSourcesTotal         *prometheus.CounterVec
	RefreshLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics with the default registry.
// Call it once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return newWorkerMetrics(prometheus.DefaultRegisterer)
}

// NewWorkerMetricsWithRegistry registers the worker metrics with reg.
func NewWorkerMetricsWithRegistry(reg prometheus.Registerer) *WorkerMetrics {
	return newWorkerMetrics(reg)
}

func newWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	f := promauto.With(reg)
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetricsWithRegistry(reg, "worker"),

		RefreshRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_refresh_runs_total",
			Help: "Total number of scheduled refresh runs by status",
		}, []string{"status"}),

		RefreshDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_refresh_duration_seconds",
			Help:    "Duration of scheduled refresh runs in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),

		RefreshSourcesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_refresh_sources_total",
			Help: "Total number of per-source outcomes across refresh runs",
		}, []string{"status"}),

		RefreshLastSuccessTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "worker_refresh_last_success_timestamp",
			Help: "Unix timestamp of the last refresh that reached the store",
		}),
	}
}

// RecordRun increments the run counter for status.
func (m *WorkerMetrics) RecordRun(status string) {
	m.RefreshRunsTotal.WithLabelValues(status).Inc()
}

// RecordDuration observes one run's duration in seconds.
func (m *WorkerMetrics) RecordDuration(seconds float64) {
	m.RefreshDurationSeconds.Observe(seconds)
}

// RecordSources adds one run's outcome counts.
func (m *WorkerMetrics) RecordSources(fresh, stale, empty int) {
	m.RefreshSourcesTotal.WithLabelValues("fresh").Add(float64(fresh))
	m.RefreshSourcesTotal.WithLabelValues("stale").Add(float64(stale))
	m.RefreshSourcesTotal.WithLabelValues("empty").Add(float64(empty))
}

// RecordLastSuccess stamps the current time as the last successful run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.RefreshLastSuccessTimestamp.SetToCurrentTime()
}
