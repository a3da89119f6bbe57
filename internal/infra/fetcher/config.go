package fetcher

import (
	"fmt"
	"time"
)

// Config holds the configuration for article body extraction.
//
// Security settings:
//   - DenyPrivateIPs: blocks URLs resolving to private addresses (SSRF prevention)
//   - MaxBodySize: rejects oversized pages while reading
//   - MaxRedirects: stops redirect loops; every hop is validated again
//   - Timeout: bounds one Extract call including its retry
//
// Quality settings:
//   - MinTextLength: the shortest text accepted from either extraction pass
type Config struct {
	// Timeout is the maximum duration of one Extract call.
	// Default: 15s
	Timeout time.Duration

	// MaxBodySize is the maximum HTTP response body size in bytes.
	// Enforced while reading, not from Content-Length.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects is the maximum number of HTTP redirects to follow.
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs rejects loopback, private and link-local targets.
	// Should always be true in production.
	// Default: true
	DenyPrivateIPs bool

	// MinTextLength is the minimum number of runes of an accepted extraction.
	// Default: 200
	MinTextLength int

	// RequestInterval spaces extraction requests out. Zero disables the limiter.
	// Default: 500ms
	RequestInterval time.Duration

	// Burst is the number of requests allowed without waiting.
	// Default: 2
	Burst int

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		MaxBodySize:     10 * 1024 * 1024, // 10MB
		MaxRedirects:    5,
		DenyPrivateIPs:  true,
		MinTextLength:   200,
		RequestInterval: 500 * time.Millisecond,
		Burst:           2,
		UserAgent:       "NewsBot/1.0 (+https://github.com/newsbot)",
	}
}

// Validate checks if the configuration values are valid and safe.
//
// Validation rules:
//   - Timeout: > 0
//   - MaxBodySize: 1KB-100MB
//   - MaxRedirects: 0-10
//   - MinTextLength: >= 0
//   - RequestInterval: >= 0, Burst >= 1
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	if c.MinTextLength < 0 {
		return fmt.Errorf("min text length must be non-negative, got %d", c.MinTextLength)
	}

	if c.RequestInterval < 0 {
		return fmt.Errorf("request interval must be non-negative, got %v", c.RequestInterval)
	}

	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", c.Burst)
	}

	return nil
}
