// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - Refresh metrics (runs, duration, per-source outcomes, staleness)
//   - Feed metrics (fetch duration, attempts, errors, merged articles)
//   - Cache metrics (evictions, cached articles, store operations)
//   - Content extraction metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the worker's /metrics endpoint.
//
// Example usage:
//
//	import "newsbot/internal/observability/metrics"
//
//	func refreshSource(sourceID string) {
//	    start := time.Now()
//	    // ... fetch and merge ...
//	    metrics.RecordFeedFetch(sourceID, time.Since(start), attempts)
//	    metrics.RecordArticlesMerged(sourceID, n)
//	}
package metrics
