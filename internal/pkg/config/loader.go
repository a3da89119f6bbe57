// Package config provides fail-open environment loaders, validators and
// configuration metrics shared by the newsbot components.
//
// Loaders never return an error. An unset variable yields the default
// silently; an unparsable or invalid one yields the default plus a warning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigLoadResult represents the result of loading a configuration value.
//
//	result := LoadEnvDuration("NEWSBOT_FETCH_TIMEOUT", 10*time.Second, ValidatePositiveDuration)
//	if result.FallbackApplied {
//	    for _, w := range result.Warnings {
//	        logger.Warn("configuration fallback", slog.String("warning", w))
//	    }
//	}
//	timeout := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString returns the variable's value, or defaultValue when unset or empty.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and validates it.
// Warning format: "Invalid {envKey}='{value}': {error}, falling back to default '{default}'"
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	return load(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validator)
}

// LoadEnvDuration loads a time.ParseDuration value and validates it.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	return load(envKey, defaultValue, time.ParseDuration, validator)
}

// LoadEnvInt loads a base-10 integer and validates it. Surrounding spaces are rejected.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	parse := func(s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return n, nil
	}
	return load(envKey, defaultValue, parse, validator)
}

// LoadEnvBool loads a boolean. Accepted forms are those of strconv.ParseBool.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	parse := func(s string) (bool, error) {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
		}
		return b, nil
	}
	return load[bool](envKey, defaultValue, parse, nil)
}

// LoadEnvList loads a comma separated list. Blank items are dropped.
func LoadEnvList(envKey string, defaultValue []string) []string {
	raw := os.Getenv(envKey)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func load[T any](envKey string, defaultValue T, parse func(string) (T, error), validator func(T) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	fallback := func(err error) ConfigLoadResult {
		return ConfigLoadResult{
			Value:           defaultValue,
			Warnings:        []string{fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, defaultValue)},
			FallbackApplied: true,
		}
	}

	value, err := parse(raw)
	if err != nil {
		return fallback(err)
	}
	if validator != nil {
		if err := validator(value); err != nil {
			return fallback(err)
		}
	}
	return ConfigLoadResult{Value: value}
}
