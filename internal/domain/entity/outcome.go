package entity

import (
	"fmt"
	"time"
)

// OutcomeKind tags the result of one source in one refresh cycle.
type OutcomeKind int

const (
	// OutcomeEmpty means the fetch failed and nothing is cached for the source.
	OutcomeEmpty OutcomeKind = iota
	// OutcomeFresh means the network fetch and parse succeeded.
	OutcomeFresh
	// OutcomeStaleFallback means the fetch failed and cached articles are served.
	OutcomeStaleFallback
)

// String returns the outcome label used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFresh:
		return "fresh"
	case OutcomeStaleFallback:
		return "stale_fallback"
	default:
		return "empty"
	}
}

// FetchOutcome is the transient per-source report of a refresh. It is never persisted.
type FetchOutcome struct {
	SourceID string
	Kind     OutcomeKind

	// Articles is the number merged (Fresh) or the number cached (StaleFallback).
	Articles int

	// StaleAge is now minus the last successful fetch. Valid only when AgeKnown.
	StaleAge    time.Duration
	AgeKnown    bool
	LastSuccess *time.Time

	// Skipped is set when a Fresh result was served from cache inside the freshness window.
	Skipped bool

	// Warning carries a non-fatal parse problem, e.g. zero recoverable entries.
	Warning string

	// Err is the terminal per-source failure, informational only.
	Err error
}

// Fresh builds a Fresh outcome.
func Fresh(sourceID string, n int) FetchOutcome {
	return FetchOutcome{SourceID: sourceID, Kind: OutcomeFresh, Articles: n}
}

// StaleFallback builds a StaleFallback outcome for k cached articles.
// lastSuccess may be nil when no successful fetch was ever recorded.
func StaleFallback(sourceID string, k int, lastSuccess *time.Time, now time.Time, cause error) FetchOutcome {
	o := FetchOutcome{
		SourceID:    sourceID,
		Kind:        OutcomeStaleFallback,
		Articles:    k,
		LastSuccess: lastSuccess,
		Err:         cause,
	}
	if lastSuccess != nil {
		o.StaleAge = now.Sub(*lastSuccess)
		o.AgeKnown = true
	}
	return o
}

// Empty builds an Empty outcome.
func Empty(sourceID string, cause error) FetchOutcome {
	return FetchOutcome{SourceID: sourceID, Kind: OutcomeEmpty, Err: cause}
}

// Status renders the outcome for a status line.
func (o FetchOutcome) Status() string {
	switch o.Kind {
	case OutcomeFresh:
		return fmt.Sprintf("%d new or updated articles", o.Articles)
	case OutcomeStaleFallback:
		if o.AgeKnown {
			return fmt.Sprintf("showing cached data from %s ago", o.StaleAge.Round(time.Minute))
		}
		return "showing cached data"
	default:
		return "no data for this source"
	}
}
