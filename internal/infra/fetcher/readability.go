package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"newsbot/internal/domain/entity"
	"newsbot/internal/observability/metrics"
	"newsbot/internal/observability/tracing"
	"newsbot/internal/resilience/circuitbreaker"
	"newsbot/internal/resilience/retry"
)

// ReadabilityExtractor implements fetch.ContentExtractor. It fetches an
// article page and extracts its main text with Mozilla's Readability
// algorithm (go-shiori/go-readability), falling back to a largest-block
// heuristic when Readability finds too little.
//
// Features:
//   - SSRF prevention via URL validation, also applied to every redirect
//   - Circuit breaker for fault tolerance
//   - Rate limiter spacing requests out
//   - Size limiting to prevent memory exhaustion
//   - Its own timeout, independent of refresh cycles
//
// Thread safety: ReadabilityExtractor is safe for concurrent use. It holds no
// per-article state and never touches the cache.
type ReadabilityExtractor struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	limiter        *rate.Limiter
	retryConfig    retry.Config
	config         Config
	logger         *slog.Logger
}

// NewReadabilityExtractor creates an extractor with the given configuration.
// An invalid configuration is rejected.
//
// Example:
//
//	cfg := fetcher.DefaultConfig()
//	extractor, err := fetcher.NewReadabilityExtractor(cfg, logger)
//	text, err := extractor.Extract(ctx, "https://example.com/article")
func NewReadabilityExtractor(config Config, logger *slog.Logger) (*ReadabilityExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("extractor config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cbConfig := circuitbreaker.ExtractionConfig()
	cbConfig.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}

	limit := rate.Inf
	if config.RequestInterval > 0 {
		limit = rate.Every(config.RequestInterval)
	}

	e := &ReadabilityExtractor{
		circuitBreaker: circuitbreaker.New(cbConfig),
		limiter:        rate.NewLimiter(limit, config.Burst),
		retryConfig:    retry.ExtractionConfig(),
		config:         config,
		logger:         logger,
	}
	e.retryConfig.Logger = logger

	e.client = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= e.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), e.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}

	return e, nil
}

// Extract fetches link and returns its readable text. Every failure wraps
// entity.ErrExtractionFailed: unreachable or slow pages, non-2xx statuses,
// oversized bodies, rejected URLs and pages without a block of at least
// MinTextLength runes.
func (e *ReadabilityExtractor) Extract(ctx context.Context, link string) (text string, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "fetcher.extract", attribute.String("url", link))
	defer func() {
		if err != nil {
			metrics.RecordContentFetchFailed(time.Since(start))
		} else {
			metrics.RecordContentFetchSuccess(time.Since(start), len(text))
		}
		tracing.EndSpan(span, err)
	}()

	if err := validateURL(link, e.config.DenyPrivateIPs); err != nil {
		return "", extractionFailed(link, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	var page []byte
	var finalURL *url.URL
	err = retry.WithBackoff(ctx, e.retryConfig, func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		result, err := e.circuitBreaker.Execute(func() (interface{}, error) {
			return e.doFetch(ctx, link)
		})
		if err != nil {
			return err
		}
		p := result.(fetchedPage)
		page, finalURL = p.body, p.url
		return nil
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: exceeded %v: %w", ErrTimeout, e.config.Timeout, err)
		}
		return "", extractionFailed(link, err)
	}

	text, err = e.extractText(page, finalURL)
	if err != nil {
		return "", extractionFailed(link, err)
	}
	return text, nil
}

type fetchedPage struct {
	body []byte
	url  *url.URL
}

// doFetch performs the HTTP request. It is called through the circuit breaker.
func (e *ReadabilityExtractor) doFetch(ctx context.Context, urlStr string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		// リダイレクト検証エラーはそのまま返す
		var urlErr *url.Error
		if errors.As(err, &urlErr) && (errors.Is(urlErr.Err, ErrTooManyRedirects) ||
			errors.Is(urlErr.Err, ErrPrivateIP) || errors.Is(urlErr.Err, ErrInvalidURL)) {
			return nil, urlErr.Err
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.config.MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > e.config.MaxBodySize {
		return nil, fmt.Errorf("%w: response size exceeds limit %d bytes", ErrBodyTooLarge, e.config.MaxBodySize)
	}

	final := resp.Request.URL
	if final == nil {
		final, _ = url.Parse(urlStr)
	}
	return fetchedPage{body: body, url: final}, nil
}

// extractText runs Readability first and the block heuristic second.
func (e *ReadabilityExtractor) extractText(page []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err == nil {
		if text := normalizeText(article.TextContent); e.longEnough(text) {
			return text, nil
		}
	} else {
		e.logger.Debug("readability failed, trying heuristic",
			slog.String("url", pageURL.String()),
			slog.Any("error", err))
	}

	text, err := largestBlock(page)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoReadableContent, err)
	}
	if !e.longEnough(text) {
		return "", fmt.Errorf("%w: best block has %d runes, need %d",
			ErrNoReadableContent, utf8.RuneCountInString(text), e.config.MinTextLength)
	}
	return text, nil
}

func (e *ReadabilityExtractor) longEnough(text string) bool {
	return text != "" && utf8.RuneCountInString(text) >= e.config.MinTextLength
}

func extractionFailed(link string, err error) error {
	return fmt.Errorf("extract %s: %w: %w", link, entity.ErrExtractionFailed, err)
}
