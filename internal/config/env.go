package config

import (
	"time"

	pkgconfig "newsbot/internal/pkg/config"
)

// applyEnv overlays NEWSBOT_* variables. Invalid values keep the file value.
//
//	NEWSBOT_CACHE_PATH                path of the cache database
//	NEWSBOT_CACHE_EXPIRY_HOURS        1-8760
//	NEWSBOT_MAX_ARTICLES_PER_SOURCE   1-10000
//	NEWSBOT_FETCH_CONCURRENCY         1-64
//	NEWSBOT_FETCH_TIMEOUT             e.g. "10s"
//	NEWSBOT_FETCH_RETRIES             0-10
//	NEWSBOT_FETCH_BACKOFF             e.g. "1s"
//	NEWSBOT_FETCH_DEADLINE            e.g. "2m", "0s" disables
//	NEWSBOT_FRESH_WINDOW              e.g. "15m", "0s" disables
//	NEWSBOT_EXTRACT_TIMEOUT           e.g. "15s"
//	NEWSBOT_EXTRACT_DENY_PRIVATE_IPS  true/false
func applyEnv(cfg *Config) []string {
	var warnings []string
	collect := func(r pkgconfig.ConfigLoadResult) interface{} {
		warnings = append(warnings, r.Warnings...)
		return r.Value
	}
	intRange := func(min, max int) func(int) error {
		return func(v int) error { return pkgconfig.ValidateIntRange(v, min, max) }
	}
	nonNegative := func(d time.Duration) error {
		return pkgconfig.ValidateDuration(d, 0, 24*time.Hour)
	}

	cfg.Cache.Path = pkgconfig.LoadEnvString("NEWSBOT_CACHE_PATH", cfg.Cache.Path)
	cfg.Cache.ExpiryHours = collect(pkgconfig.LoadEnvInt("NEWSBOT_CACHE_EXPIRY_HOURS", cfg.Cache.ExpiryHours, intRange(1, 8760))).(int)
	cfg.Cache.MaxArticlesPerSource = collect(pkgconfig.LoadEnvInt("NEWSBOT_MAX_ARTICLES_PER_SOURCE", cfg.Cache.MaxArticlesPerSource, intRange(1, 10000))).(int)

	cfg.Fetch.ConcurrencyLimit = collect(pkgconfig.LoadEnvInt("NEWSBOT_FETCH_CONCURRENCY", cfg.Fetch.ConcurrencyLimit, intRange(1, 64))).(int)
	cfg.Fetch.PerSourceTimeout = collect(pkgconfig.LoadEnvDuration("NEWSBOT_FETCH_TIMEOUT", cfg.Fetch.PerSourceTimeout, pkgconfig.ValidatePositiveDuration)).(time.Duration)
	cfg.Fetch.PerSourceRetries = collect(pkgconfig.LoadEnvInt("NEWSBOT_FETCH_RETRIES", cfg.Fetch.PerSourceRetries, intRange(0, 10))).(int)
	cfg.Fetch.Backoff = collect(pkgconfig.LoadEnvDuration("NEWSBOT_FETCH_BACKOFF", cfg.Fetch.Backoff, nonNegative)).(time.Duration)
	cfg.Fetch.Deadline = collect(pkgconfig.LoadEnvDuration("NEWSBOT_FETCH_DEADLINE", cfg.Fetch.Deadline, nonNegative)).(time.Duration)
	cfg.Fetch.FreshWindow = collect(pkgconfig.LoadEnvDuration("NEWSBOT_FRESH_WINDOW", cfg.Fetch.FreshWindow, nonNegative)).(time.Duration)

	cfg.Extract.Timeout = collect(pkgconfig.LoadEnvDuration("NEWSBOT_EXTRACT_TIMEOUT", cfg.Extract.Timeout, pkgconfig.ValidatePositiveDuration)).(time.Duration)

	deny := true
	if cfg.Extract.DenyPrivateIPs != nil {
		deny = *cfg.Extract.DenyPrivateIPs
	}
	deny = collect(pkgconfig.LoadEnvBool("NEWSBOT_EXTRACT_DENY_PRIVATE_IPS", deny)).(bool)
	cfg.Extract.DenyPrivateIPs = &deny

	return warnings
}
