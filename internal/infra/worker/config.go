// Package worker holds the runtime pieces of the scheduled refresh worker:
// its environment configuration, Prometheus metrics, the health server and
// the Runner that drives one refresh per cron tick.
package worker

import (
	"errors"
	"fmt"
	"log/slog"

	"newsbot/internal/pkg/config"
)

// Environment keys read by LoadConfigFromEnv.
const (
	EnvCronSchedule = "NEWSBOT_CRON_SCHEDULE"
	EnvTimezone     = "NEWSBOT_TIMEZONE"
	EnvHealthPort   = "NEWSBOT_HEALTH_PORT"
	EnvMetricsPort  = "NEWSBOT_METRICS_PORT"
	EnvRunOnStart   = "NEWSBOT_REFRESH_ON_START"
)

// WorkerConfig holds the configuration for the refresh worker.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// The refresh deadline and pool settings come from the YAML file
// (internal/config), not from here.
type WorkerConfig struct {
	// CronSchedule is a standard 5-field cron expression.
	// Default: "*/30 * * * *" (every 30 minutes)
	CronSchedule string

	// Timezone is the IANA timezone name the schedule is evaluated in.
	// Default: "UTC"
	Timezone string

	// HealthPort serves /health and /health/ready.
	// Range: 1024-65535
	// Default: 9091
	HealthPort int

	// MetricsPort serves /metrics.
	// Range: 1024-65535, must differ from HealthPort
	// Default: 9090
	MetricsPort int

	// RunOnStart triggers one refresh immediately instead of waiting for the
	// first tick.
	// Default: true
	RunOnStart bool
}

// DefaultConfig returns a WorkerConfig with production defaults.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule: "*/30 * * * *",
		Timezone:     "UTC",
		HealthPort:   9091,
		MetricsPort:  9090,
		RunOnStart:   true,
	}
}

// Validate checks every field and reports all failures together.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("metrics port: %w", err))
	}
	if c.HealthPort == c.MetricsPort {
		errs = append(errs, fmt.Errorf("metrics port: must differ from health port %d", c.HealthPort))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// HealthAddr is the listen address of the health server.
func (c *WorkerConfig) HealthAddr() string {
	return fmt.Sprintf(":%d", c.HealthPort)
}

// MetricsAddr is the listen address of the metrics server.
func (c *WorkerConfig) MetricsAddr() string {
	return fmt.Sprintf(":%d", c.MetricsPort)
}

// LoadConfigFromEnv loads the worker configuration from environment variables
// using the fail-open strategy: an invalid value is replaced by its default,
// logged, and counted in metrics. The returned config is always valid.
//
// Environment variables:
//   - NEWSBOT_CRON_SCHEDULE: cron expression (default "*/30 * * * *")
//   - NEWSBOT_TIMEZONE: IANA timezone name (default "UTC")
//   - NEWSBOT_HEALTH_PORT: 1024-65535 (default 9091)
//   - NEWSBOT_METRICS_PORT: 1024-65535 (default 9090)
//   - NEWSBOT_REFRESH_ON_START: boolean (default true)
//
// Warning log format:
//
//	logger.Warn("Configuration fallback applied",
//	    slog.String("field", "CronSchedule"),
//	    slog.String("warning", "Invalid NEWSBOT_CRON_SCHEDULE='bad': ..."))
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	cfg := DefaultConfig()
	l := envLoader{logger: logger, metrics: metrics}

	result := config.LoadEnvWithFallback(EnvCronSchedule, cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	l.check("CronSchedule", "cron_schedule", result)

	result = config.LoadEnvWithFallback(EnvTimezone, cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	l.check("Timezone", "timezone", result)

	validPort := func(v int) error { return config.ValidateIntRange(v, 1024, 65535) }

	result = config.LoadEnvInt(EnvHealthPort, cfg.HealthPort, validPort)
	cfg.HealthPort = result.Value.(int)
	l.check("HealthPort", "health_port", result)

	defaultMetrics := cfg.MetricsPort
	result = config.LoadEnvInt(EnvMetricsPort, cfg.MetricsPort, func(v int) error {
		if err := validPort(v); err != nil {
			return err
		}
		if v == cfg.HealthPort {
			return fmt.Errorf("port %d already used by the health server", v)
		}
		return nil
	})
	cfg.MetricsPort = result.Value.(int)
	l.check("MetricsPort", "metrics_port", result)
	// デフォルト同士が衝突する場合はヘルスポートの隣に逃がす
	if cfg.MetricsPort == cfg.HealthPort {
		cfg.MetricsPort = cfg.HealthPort + 1
		if cfg.MetricsPort > 65535 {
			cfg.MetricsPort = cfg.HealthPort - 1
		}
		l.applied = true
		logger.Warn("Configuration fallback applied",
			slog.String("field", "MetricsPort"),
			slog.Int("default_value", defaultMetrics),
			slog.Int("value", cfg.MetricsPort))
		if metrics != nil {
			metrics.RecordFallback("metrics_port")
		}
	}

	result = config.LoadEnvBool(EnvRunOnStart, cfg.RunOnStart)
	cfg.RunOnStart = result.Value.(bool)
	l.check("RunOnStart", "run_on_start", result)

	if metrics != nil {
		metrics.SetFallbackActive(l.applied)
		metrics.RecordLoadTimestamp()
	}
	return &cfg
}

type envLoader struct {
	logger  *slog.Logger
	metrics *WorkerMetrics
	applied bool
}

func (l *envLoader) check(field, label string, result config.ConfigLoadResult) {
	if !result.FallbackApplied {
		return
	}
	l.applied = true
	if l.metrics != nil {
		l.metrics.RecordValidationError(label)
		l.metrics.RecordFallback(label)
	}
	for _, warning := range result.Warnings {
		l.logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}
}
