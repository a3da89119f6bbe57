package config

import (
	"fmt"
	"net"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule validates a cron expression with the robfig/cron/v3 parser,
// using the same field set the worker scheduler is built with.
//
// The expression must have exactly five fields:
//   - "minute hour day-of-month month day-of-week"
//   - Example: "*/30 * * * *" (every 30 minutes, the worker default)
//   - Example: "0 */2 * * *" (every 2 hours)
//   - Example: "15 6 * * 1-5" (weekdays at 6:15)
//
// Descriptors such as "@hourly" and six-field expressions with seconds are rejected.
//
// Parameters:
//   - schedule: Cron expression to validate
//
// Returns:
//   - error: nil if valid, an error naming the expression and the parser's reason otherwise
//
// Example:
//
//	if err := ValidateCronSchedule(os.Getenv("NEWSBOT_CRON_SCHEDULE")); err != nil {
//	    logger.Warn("Invalid refresh schedule", slog.Any("error", err))
//	}
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateTimezone validates an IANA timezone name by loading it with
// time.LoadLocation.
//
// Accepted values look like:
//   - Example: "UTC"
//   - Example: "Europe/Warsaw"
//   - Example: "Asia/Tokyo"
//
// Whether a name loads depends on the timezone database available to the
// process. A minimal container image without tzdata rejects every name except "UTC".
//
// Parameters:
//   - timezone: IANA timezone name to validate
//
// Returns:
//   - error: nil if the location loads, an error naming the timezone otherwise
//
// Common issues:
//   - Missing tzdata in the image
//   - A UTC offset such as "+01:00" instead of a location name
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}
	return nil
}

// ValidateDuration validates that a duration lies within [min, max].
//
// Validation rules:
//   - duration must be >= min (inclusive)
//   - duration must be <= max (inclusive)
//   - min must be <= max (checked internally)
//
// Parameters:
//   - duration: Duration value to validate
//   - min: Minimum allowed duration (inclusive)
//   - max: Maximum allowed duration (inclusive)
//
// Returns:
//   - error: nil if valid, an error carrying the value and the violated bound otherwise
//
// Example:
//
//	// per-source fetch timeout between 1s and 5m
//	err := ValidateDuration(10*time.Second, time.Second, 5*time.Minute)
//
// Use cases:
//   - Per-source and extraction timeouts
//   - Retry backoff base delay
//   - Freshness window and refresh deadline
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}
	if duration < min {
		return fmt.Errorf("duration %v is below minimum %v", duration, min)
	}
	if duration > max {
		return fmt.Errorf("duration %v exceeds maximum %v", duration, max)
	}
	return nil
}

// ValidateIntRange validates that an integer lies within [min, max].
//
// Validation rules:
//   - value must be >= min (inclusive)
//   - value must be <= max (inclusive)
//   - min must be <= max (checked internally)
//
// Parameters:
//   - value: Integer value to validate
//   - min: Minimum allowed value (inclusive)
//   - max: Maximum allowed value (inclusive)
//
// Returns:
//   - error: nil if valid, an error carrying the value and the violated bound otherwise
//
// Example:
//
//	// fetch concurrency between 1 and 64
//	err := ValidateIntRange(8, 1, 64)
//
// Use cases:
//   - Fetch concurrency (1-64)
//   - Port numbers (1024-65535)
//   - Per-source article caps and retry counts
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) cannot be greater than max (%d)", min, max)
	}
	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}
	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}
	return nil
}

// ValidatePositiveDuration validates that a duration is strictly greater than zero.
//
// Parameters:
//   - duration: Duration value to validate
//
// Returns:
//   - error: nil if positive, an error carrying the value otherwise
//
// Use it for settings where zero would silently mean "no limit".
// Settings where zero deliberately disables a feature, such as the freshness
// window, go through ValidateDuration with a zero minimum instead.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}

// ValidateListenAddr validates a host:port listen address such as ":9091".
//
// Parameters:
//   - addr: Address passed to http.Server.Addr
//
// Returns:
//   - error: nil if net.SplitHostPort accepts it, descriptive error otherwise
func ValidateListenAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address '%s': %w", addr, err)
	}
	return nil
}
