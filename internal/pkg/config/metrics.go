package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics is a per-component set of configuration metrics.
//
// Metrics generated (prefixed by component name):
//   - {component}_config_load_timestamp
//   - {component}_config_validation_errors_total{field}
//   - {component}_config_fallbacks_total{field}
//   - {component}_config_fallback_active
//
// Each component name may be registered only once per process.
type ConfigMetrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackActive        prometheus.Gauge

	componentName string
}

// NewConfigMetrics registers the configuration metrics of componentName.
// It panics on duplicate registration, like promauto.
func NewConfigMetrics(componentName string) *ConfigMetrics {
	return newConfigMetrics(promauto.With(prometheus.DefaultRegisterer), componentName)
}

// NewConfigMetricsWithRegistry registers the metrics on reg. Useful in tests.
func NewConfigMetricsWithRegistry(reg prometheus.Registerer, componentName string) *ConfigMetrics {
	return newConfigMetrics(promauto.With(reg), componentName)
}

func newConfigMetrics(f promauto.Factory, componentName string) *ConfigMetrics {
	return &ConfigMetrics{
		LoadTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", componentName),
			Help: "Unix timestamp of the last configuration load",
		}),
		ValidationErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_validation_errors_total", componentName),
			Help: "Total number of configuration validation errors",
		}, []string{"field"}),
		FallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", componentName),
			Help: "Total number of configuration fallbacks applied",
		}, []string{"field"}),
		FallbackActive: f.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_fallback_active", componentName),
			Help: "1 if any configuration fallback is active, 0 otherwise",
		}),
		componentName: componentName,
	}
}

// Component returns the component name.
func (m *ConfigMetrics) Component() string {
	return m.componentName
}

// RecordLoadTimestamp sets the load timestamp to now.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError increments the validation error counter of field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback increments the fallback counter of field.
func (m *ConfigMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// SetFallbackActive sets the fallback gauge.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}
