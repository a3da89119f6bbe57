// Package retry provides retry logic with exponential backoff and jitter.
// It helps handle transient failures gracefully by automatically retrying failed operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// ErrAttemptTimeout marks a single attempt that ran out of its own timeout
// while the caller's context was still alive. It is always retryable.
var ErrAttemptTimeout = errors.New("attempt timed out")

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first one
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff
	Multiplier float64

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0)
	JitterFraction float64

	// Logger receives retry progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// FeedFetchConfig returns configuration for one source in a refresh cycle.
// retries is the number of attempts after the first; backoff is the first delay.
func FeedFetchConfig(retries int, backoff time.Duration) Config {
	if retries < 0 {
		retries = 0
	}
	return Config{
		MaxAttempts:    retries + 1,
		InitialDelay:   backoff,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// ExtractionConfig returns configuration for full-text extraction.
// One quick retry; the reader is waiting on the result.
func ExtractionConfig() Config {
	return Config{
		MaxAttempts:    2,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// WithBackoff executes the given function with retry logic and exponential backoff.
// It returns nil if the function succeeds, or the last error if all attempts fail.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()

		if lastErr == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			logger.Debug("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return lastErr
		}

		// Don't wait after last attempt
		if attempt == maxAttempts {
			break
		}

		logger.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w", errors.Join(ctx.Err(), lastErr))
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		// Add jitter to prevent thundering herd
		delay = addJitter(delay, cfg.JitterFraction)
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", maxAttempts, lastErr)
}

// IsRetryable determines if an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrAttemptTimeout) {
		return true
	}

	// The caller's own cancellation or deadline ends the retry loop
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Any non-2xx response may be transient for a news site
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode < 200 || httpErr.StatusCode >= 300
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	return false
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	// Cryptographic randomness is not required for retry backoff jitter.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
