// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh metrics track one orchestrated refresh across all sources
var (
	// RefreshesTotal counts refresh runs by result (success, storage_unavailable)
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsbot_refreshes_total",
			Help: "Total number of refresh runs",
		},
		[]string{"result"},
	)

	// RefreshDuration measures the wall time of a refresh in seconds
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsbot_refresh_duration_seconds",
			Help:    "Refresh duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// SourceOutcomesTotal counts per-source outcomes (fresh, stale_fallback, empty)
	SourceOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsbot_source_outcomes_total",
			Help: "Total number of per-source refresh outcomes",
		},
		[]string{"source_id", "outcome"},
	)

	// SourceStalenessSeconds records the age of the cache served as a fallback
	SourceStalenessSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "newsbot_source_staleness_seconds",
			Help: "Age of cached data served for a source after a failed fetch",
		},
		[]string{"source_id"},
	)
)

// Feed metrics track network fetches of individual feeds
var (
	// FeedFetchDuration measures one source's fetch, retries included
	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsbot_feed_fetch_duration_seconds",
			Help:    "Feed fetch duration in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source_id"},
	)

	// FeedFetchAttempts observes the number of attempts a fetch needed
	FeedFetchAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsbot_feed_fetch_attempts",
			Help:    "Number of attempts per feed fetch",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)

	// FeedErrorsTotal counts fetch and parse errors by kind (network, parse, breaker_open)
	FeedErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsbot_feed_errors_total",
			Help: "Total number of feed errors",
		},
		[]string{"source_id", "kind"},
	)

	// ArticlesMergedTotal counts articles merged into the cache
	ArticlesMergedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsbot_articles_merged_total",
			Help: "Total number of articles merged into the cache",
		},
		[]string{"source_id"},
	)
)

// Cache metrics
var (
	// ArticlesEvictedTotal counts rows removed by expiry and capacity eviction
	ArticlesEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsbot_articles_evicted_total",
			Help: "Total number of cached articles evicted",
		},
	)

	// ArticlesCached tracks the number of cached articles per source
	ArticlesCached = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "newsbot_articles_cached",
			Help: "Number of cached articles per source",
		},
		[]string{"source_id"},
	)

	// DBQueryDuration measures cache store operation duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsbot_db_query_duration_seconds",
			Help:    "Cache store operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Content extraction metrics
var (
	// ContentFetchAttemptsTotal counts extraction attempts by result (success, failure, cached)
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsbot_content_fetch_attempts_total",
			Help: "Total number of full-text extraction attempts",
		},
		[]string{"result"},
	)

	// ContentFetchDuration measures extraction duration
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsbot_content_fetch_duration_seconds",
			Help:    "Full-text extraction duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30},
		},
	)

	// ContentFetchSize observes the extracted text size in characters
	ContentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsbot_content_fetch_size_chars",
			Help:    "Extracted text size in characters",
			Buckets: prometheus.ExponentialBuckets(200, 2, 10),
		},
	)
)

// RecordRefresh records a finished refresh run.
func RecordRefresh(result string, duration time.Duration) {
	RefreshesTotal.WithLabelValues(result).Inc()
	RefreshDuration.Observe(duration.Seconds())
}

// RecordSourceOutcome records the outcome of one source in a refresh.
// staleAge is recorded only for stale fallbacks with a known age.
func RecordSourceOutcome(sourceID, outcome string, staleAge time.Duration, ageKnown bool) {
	SourceOutcomesTotal.WithLabelValues(sourceID, outcome).Inc()
	if outcome == "stale_fallback" && ageKnown {
		SourceStalenessSeconds.WithLabelValues(sourceID).Set(staleAge.Seconds())
	} else if outcome == "fresh" {
		SourceStalenessSeconds.WithLabelValues(sourceID).Set(0)
	}
}

// RecordFeedFetch records the duration and attempt count of one feed fetch.
func RecordFeedFetch(sourceID string, duration time.Duration, attempts int) {
	FeedFetchDuration.WithLabelValues(sourceID).Observe(duration.Seconds())
	FeedFetchAttempts.Observe(float64(attempts))
}

// RecordFeedError records a feed error. kind is "network", "parse" or "breaker_open".
func RecordFeedError(sourceID, kind string) {
	FeedErrorsTotal.WithLabelValues(sourceID, kind).Inc()
}

// RecordArticlesMerged records the number of articles merged for a source.
func RecordArticlesMerged(sourceID string, count int) {
	ArticlesMergedTotal.WithLabelValues(sourceID).Add(float64(count))
}

// RecordEviction records the number of evicted rows.
func RecordEviction(count int64) {
	ArticlesEvictedTotal.Add(float64(count))
}

// UpdateArticlesCached sets the cached article gauge for a source.
func UpdateArticlesCached(sourceID string, count int) {
	ArticlesCached.WithLabelValues(sourceID).Set(float64(count))
}

// RecordDBQuery records the duration of a cache store operation.
// Operation should describe the call (e.g., "upsert", "evict").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordContentFetchSuccess records a successful extraction.
//
// Example:
//
//	start := time.Now()
//	text, err := extractor.Extract(ctx, link)
//	if err == nil {
//	    RecordContentFetchSuccess(time.Since(start), len(text))
//	}
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed extraction.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchCached records a body served from the cache without extraction.
func RecordContentFetchCached() {
	ContentFetchAttemptsTotal.WithLabelValues("cached").Inc()
}
