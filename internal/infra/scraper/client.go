package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"newsbot/internal/domain/entity"
	"newsbot/internal/resilience/circuitbreaker"
	"newsbot/internal/resilience/retry"
)

const (
	// DefaultUserAgent identifies the fetcher to feed servers.
	DefaultUserAgent = "NewsBot/1.0 (+https://github.com/newsbot)"

	// DefaultMaxFeedSize bounds a single feed document.
	DefaultMaxFeedSize int64 = 10 * 1024 * 1024 // 10MB
)

// HTTPFeedClient implements fetch.FeedClient. Every source gets its own
// circuit breaker. Retries and per-attempt timeouts are the caller's job.
type HTTPFeedClient struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
}

// ClientOption configures an HTTPFeedClient.
type ClientOption func(*HTTPFeedClient)

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) ClientOption {
	return func(c *HTTPFeedClient) { c.userAgent = ua }
}

// WithMaxFeedSize overrides DefaultMaxFeedSize.
func WithMaxFeedSize(n int64) ClientOption {
	return func(c *HTTPFeedClient) { c.maxBodySize = n }
}

// WithClientLogger sets the logger used for breaker rejections.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *HTTPFeedClient) { c.logger = logger }
}

// NewHTTPFeedClient creates a feed client on top of client.
func NewHTTPFeedClient(client *http.Client, opts ...ClientOption) *HTTPFeedClient {
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	c := &HTTPFeedClient{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxFeedSize,
		logger:      slog.Default(),
		breakers:    make(map[string]*circuitbreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient returns the pooled client used for feed requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// Get fetches the raw document of src.FeedURL.
func (c *HTTPFeedClient) Get(ctx context.Context, src *entity.Source) ([]byte, error) {
	cb := c.breaker(src.ID)

	result, err := cb.Execute(func() (interface{}, error) {
		return c.doGet(ctx, src.FeedURL)
	})
	if err != nil {
		if circuitbreaker.ErrOpen(err) {
			c.logger.Warn("feed fetch circuit breaker open, request rejected",
				slog.String("source_id", src.ID),
				slog.String("url", src.FeedURL),
				slog.String("state", cb.State().String()))
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (c *HTTPFeedClient) doGet(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml, text/xml, text/html;q=0.9, */*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 接続を再利用できるよう少しだけ読み捨てる
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("feed exceeds %d bytes", c.maxBodySize)
	}
	return body, nil
}

func (c *HTTPFeedClient) breaker(sourceID string) *circuitbreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[sourceID]
	if !ok {
		cfg := circuitbreaker.FeedFetchConfig(sourceID)
		cfg.IsSuccessful = func(err error) bool {
			// 呼び出し側のキャンセルはサイトの障害ではない
			return err == nil || errors.Is(err, context.Canceled)
		}
		cb = circuitbreaker.New(cfg)
		c.breakers[sourceID] = cb
	}
	return cb
}
