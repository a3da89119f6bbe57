package entity

import (
	"fmt"
	"math"
	"net/url"
	"time"
)

// maxURLLength defines the maximum allowed length for URLs to prevent DoS attacks.
const maxURLLength = 2048

// Bounds of a timestamp that survives a round trip through int64 Unix nanoseconds,
// which is how the cache stores every time value.
var (
	MinStorableTime = time.Unix(0, math.MinInt64).UTC()
	MaxStorableTime = time.Unix(0, math.MaxInt64).UTC()
)

// ValidateURL validates the format of a URL.
// It checks that the URL is well-formed, uses HTTP/HTTPS scheme, and has a valid host.
//
// No DNS lookup is performed; source definitions must validate offline.
// Private addresses are rejected later, at extraction time, by the fetcher's
// SSRF guard.
//
// Parameters:
//   - rawURL: Feed or page URL from a source definition
//
// Returns:
//   - error: nil if valid, a *ValidationError with Field "url" otherwise
//
// Example:
//
//	if err := ValidateURL(src.FeedURL); err != nil {
//	    return fmt.Errorf("source %q: %w", src.ID, err)
//	}
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}

	// DoS protection: enforce maximum URL length
	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "url", Message: fmt.Sprintf("parse URL: %v", err)}
	}

	// HTTPまたはHTTPSスキームのみ許可
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}

	// ホスト名の検証
	if parsedURL.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	return nil
}

// StorableTime reports whether t lies within [MinStorableTime, MaxStorableTime].
//
// Feeds occasionally carry absurd dates (year 3000, year 1). Outside this range
// the nanosecond encoding wraps around and the article would sort, and be
// evicted, as if it were dated somewhere else entirely.
//
// Parameters:
//   - t: Candidate timestamp, usually a parsed published date
//
// Returns:
//   - bool: true if t can be stored without loss
//
// Example:
//
//	if !StorableTime(parsed) {
//	    published = nil // falls back to FirstSeenAt
//	}
func StorableTime(t time.Time) bool {
	return !t.Before(MinStorableTime) && !t.After(MaxStorableTime)
}
