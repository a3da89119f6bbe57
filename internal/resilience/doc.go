// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes implementations of circuit breakers and retry logic
// so that one unreliable news site cannot hold up or break a refresh.
//
// The package supports:
//   - Circuit breakers for feed sources and full-text extraction
//   - Retry logic with exponential backoff and jitter
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.FeedFetchConfig("dw"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchFeed()
//	})
//
//	retryConfig := retry.FeedFetchConfig(3, time.Second)
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience
