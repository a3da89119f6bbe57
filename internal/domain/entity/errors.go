package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrNetworkFailure indicates a connect failure, timeout or non-2xx response.
	// Retryable within a refresh cycle.
	ErrNetworkFailure = errors.New("network failure")

	// ErrParseFailure indicates a malformed feed body. Not retried within a cycle.
	ErrParseFailure = errors.New("feed parse failure")

	// ErrExtractionFailed indicates the full body of one article could not be produced.
	ErrExtractionFailed = errors.New("content extraction failed")

	// ErrConfigInvalid indicates a malformed source definition.
	ErrConfigInvalid = errors.New("invalid source configuration")

	// ErrStorageUnavailable indicates the cache store cannot be read or written.
	// It is the only failure that surfaces from a refresh.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field    string
	Message  string
	SourceID string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("source %q: validation error on field '%s': %s", e.SourceID, e.Field, e.Message)
	}
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrConfigInvalid.
func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}
