// Package fetch provides the refresh use case: fetching every enabled source
// under bounded concurrency, merging fresh results into the cache and falling
// back to cached data for sources that fail.
package fetch

import (
	"fmt"

	"newsbot/internal/domain/entity"
)

// ParseWarning is a non-fatal parse result. It distinguishes an empty source
// from a broken one, and reports entries skipped for missing fields.
type ParseWarning struct {
	// Skipped is the number of entries dropped for missing title, link or identity,
	// or as duplicates of an earlier entry id.
	Skipped int
	// Empty is set when well-formed input yielded no usable entry.
	Empty   bool
	Message string
}

// String implements fmt.Stringer.
func (w *ParseWarning) String() string {
	if w == nil {
		return ""
	}
	return w.Message
}

// NewParseWarning returns nil when nothing is worth reporting.
func NewParseWarning(total, kept int) *ParseWarning {
	skipped := total - kept
	switch {
	case kept == 0 && total == 0:
		return &ParseWarning{Empty: true, Message: "feed contains no entries"}
	case kept == 0:
		return &ParseWarning{Empty: true, Skipped: skipped,
			Message: fmt.Sprintf("no usable entries (%d skipped)", skipped)}
	case skipped > 0:
		return &ParseWarning{Skipped: skipped,
			Message: fmt.Sprintf("%d of %d entries skipped", skipped, total)}
	default:
		return nil
	}
}

func networkFailure(sourceID string, err error) error {
	return fmt.Errorf("fetch %s: %w: %w", sourceID, entity.ErrNetworkFailure, err)
}

func parseFailure(sourceID string, err error) error {
	return fmt.Errorf("parse %s: %w", sourceID, err)
}
