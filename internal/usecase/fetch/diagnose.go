package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"newsbot/internal/domain/entity"
	"newsbot/internal/resilience/circuitbreaker"
	"newsbot/internal/resilience/retry"
)

// Diagnostic statuses.
const (
	DiagnosticOK          = "OK"
	DiagnosticHTTPError   = "HTTP_ERROR"
	DiagnosticTimeout     = "TIMEOUT"
	DiagnosticNetwork     = "NETWORK_ERROR"
	DiagnosticBreakerOpen = "BREAKER_OPEN"
	DiagnosticParseError  = "PARSE_ERROR"
	DiagnosticEmpty       = "EMPTY"
	DiagnosticNoParser    = "CONFIG_ERROR"
)

// Diagnostic is the result of probing one source without touching the cache.
type Diagnostic struct {
	SourceID     string        `json:"source_id"`
	Name         string        `json:"name"`
	URL          string        `json:"url"`
	Status       string        `json:"status"`
	HTTPCode     int           `json:"http_code,omitempty"`
	ItemCount    int           `json:"item_count"`
	Skipped      int           `json:"skipped,omitempty"`
	Latest       *time.Time    `json:"latest,omitempty"`
	ResponseTime time.Duration `json:"response_time_ns"`
	ContentBytes int           `json:"content_length"`
	Error        string        `json:"error,omitempty"`
}

// Diagnose fetches and parses each source once, with no retry, and reports
// what it found. Results keep the order of sources.
func (s *Service) Diagnose(ctx context.Context, sources []entity.Source, timeout time.Duration, concurrency int) []Diagnostic {
	if concurrency < 1 {
		concurrency = 1
	}
	out := make([]Diagnostic, len(sources))

	var eg errgroup.Group
	eg.SetLimit(concurrency)
	for i := range sources {
		i, src := i, sources[i]
		eg.Go(func() error {
			out[i] = s.diagnose(ctx, src, timeout)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func (s *Service) diagnose(ctx context.Context, src entity.Source, timeout time.Duration) Diagnostic {
	d := Diagnostic{SourceID: src.ID, Name: src.Name, URL: src.FeedURL}

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.client.Get(attemptCtx, &src)
	d.ResponseTime = time.Since(start)
	if err != nil {
		d.Error = err.Error()
		var httpErr *retry.HTTPError
		switch {
		case errors.As(err, &httpErr):
			d.Status = DiagnosticHTTPError
			d.HTTPCode = httpErr.StatusCode
		case circuitbreaker.ErrOpen(err):
			d.Status = DiagnosticBreakerOpen
		case errors.Is(err, context.DeadlineExceeded):
			d.Status = DiagnosticTimeout
		default:
			d.Status = DiagnosticNetwork
		}
		s.logger.Debug("diagnose: fetch failed", slog.String("source_id", src.ID), slog.Any("error", err))
		return d
	}
	d.ContentBytes = len(raw)

	parser, ok := s.parsers[sourceType(src)]
	if !ok {
		d.Status = DiagnosticNoParser
		d.Error = "no parser for source type " + sourceType(src)
		return d
	}

	articles, warning, err := parser.Parse(&src, raw)
	if err != nil {
		d.Status = DiagnosticParseError
		d.Error = err.Error()
		return d
	}

	d.ItemCount = len(articles)
	if warning != nil {
		d.Skipped = warning.Skipped
		d.Error = warning.String()
	}
	if len(articles) == 0 {
		d.Status = DiagnosticEmpty
		return d
	}

	d.Status = DiagnosticOK
	for i := range articles {
		if p := articles[i].PublishedAt; p != nil && (d.Latest == nil || p.After(*d.Latest)) {
			t := *p
			d.Latest = &t
		}
	}
	return d
}
