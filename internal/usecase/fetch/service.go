package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"newsbot/internal/domain/entity"
	"newsbot/internal/observability/logging"
	"newsbot/internal/observability/metrics"
	"newsbot/internal/observability/tracing"
	"newsbot/internal/repository"
	"newsbot/internal/resilience/circuitbreaker"
	"newsbot/internal/resilience/retry"
)

// RefreshOptions control one refresh call.
type RefreshOptions struct {
	// ConcurrencyLimit is the number of sources fetched at once. Minimum 1.
	ConcurrencyLimit int
	// PerSourceTimeout bounds every single attempt of a source.
	PerSourceTimeout time.Duration
	// PerSourceRetries is the number of attempts after the first.
	PerSourceRetries int
	// Backoff is the first delay between attempts; it doubles afterwards.
	Backoff time.Duration
	// FreshWindow skips sources fetched successfully within this window. Zero disables it.
	FreshWindow time.Duration
	// Force ignores FreshWindow.
	Force bool
}

// DefaultRefreshOptions returns the options used when nothing is configured.
func DefaultRefreshOptions() RefreshOptions {
	return RefreshOptions{
		ConcurrencyLimit: 8,
		PerSourceTimeout: 10 * time.Second,
		PerSourceRetries: 2,
		Backoff:          time.Second,
	}
}

func (o RefreshOptions) normalized() RefreshOptions {
	def := DefaultRefreshOptions()
	if o.ConcurrencyLimit < 1 {
		o.ConcurrencyLimit = 1
	}
	if o.PerSourceTimeout <= 0 {
		o.PerSourceTimeout = def.PerSourceTimeout
	}
	if o.PerSourceRetries < 0 {
		o.PerSourceRetries = 0
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	return o
}

// Report is the complete result of one refresh call.
type Report struct {
	RefreshID string
	Outcomes  map[string]entity.FetchOutcome
	Evicted   int64
	StartedAt time.Time
	Duration  time.Duration
}

// Counts returns the number of fresh, stale and empty outcomes.
func (r Report) Counts() (fresh, stale, empty int) {
	for _, o := range r.Outcomes {
		switch o.Kind {
		case entity.OutcomeFresh:
			fresh++
		case entity.OutcomeStaleFallback:
			stale++
		default:
			empty++
		}
	}
	return fresh, stale, empty
}

// Service orchestrates refreshes against a cache store.
type Service struct {
	store   repository.CacheStore
	client  FeedClient
	parsers map[string]FeedParser

	// MaxArticlesPerSource is the fallback read limit and the cap for sources without their own.
	maxArticlesPerSource int
	now                  func() time.Time
	logger               *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMaxArticlesPerSource sets the global per-source cap.
func WithMaxArticlesPerSource(n int) Option {
	return func(s *Service) { s.maxArticlesPerSource = n }
}

// NewService creates a refresh service. parsers is keyed by source type
// (entity.SourceTypeRSS, entity.SourceTypeHTML).
func NewService(store repository.CacheStore, client FeedClient, parsers map[string]FeedParser, opts ...Option) *Service {
	s := &Service{
		store:                store,
		client:               client,
		parsers:              parsers,
		maxArticlesPerSource: 50,
		now:                  time.Now,
		logger:               slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh fetches every enabled source with at most opts.ConcurrencyLimit
// fetches in flight and returns one outcome per enabled source. Disabled
// sources are neither fetched nor reported. Per-source failures, including
// cancellation of ctx, degrade to cached data and never produce an error. The
// only error returned wraps entity.ErrStorageUnavailable.
func (s *Service) Refresh(ctx context.Context, sources []entity.Source, opts RefreshOptions) (Report, error) {
	opts = opts.normalized()
	sources = enabledOnly(sources)
	started := s.now()
	report := Report{
		RefreshID: uuid.NewString(),
		Outcomes:  make(map[string]entity.FetchOutcome, len(sources)),
		StartedAt: started,
	}

	ctx, logger := logging.WithRefreshID(ctx, s.logger, report.RefreshID)
	ctx, span := tracing.StartSpan(ctx, "fetch.refresh",
		attribute.String("refresh_id", report.RefreshID),
		attribute.Int("sources", len(sources)),
		attribute.Int("concurrency_limit", opts.ConcurrencyLimit))

	err := s.refresh(ctx, logger, sources, opts, &report)

	report.Duration = s.now().Sub(started)
	tracing.EndSpan(span, err)

	result := "success"
	if err != nil {
		result = "storage_unavailable"
	}
	metrics.RecordRefresh(result, report.Duration)

	fresh, stale, empty := report.Counts()
	logger.Info("refresh completed",
		slog.Int("sources", len(sources)),
		slog.Int("fresh", fresh),
		slog.Int("stale_fallback", stale),
		slog.Int("empty", empty),
		slog.Int64("evicted", report.Evicted),
		slog.Duration("duration", report.Duration),
		slog.Bool("storage_ok", err == nil))

	return report, err
}

func (s *Service) refresh(ctx context.Context, logger *slog.Logger, sources []entity.Source, opts RefreshOptions, report *Report) error {
	// ストレージ確認は全体のデッドラインに左右されない
	safeCtx := context.WithoutCancel(ctx)
	if err := s.store.Ping(safeCtx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.ConcurrencyLimit)

	for i := range sources {
		src := sources[i]
		eg.Go(func() error {
			outcome, err := s.refreshSource(egCtx, src, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Outcomes[src.ID] = outcome
			mu.Unlock()

			metrics.RecordSourceOutcome(src.ID, outcome.Kind.String(), outcome.StaleAge, outcome.AgeKnown)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		logger.Error("refresh aborted, cache store unavailable", slog.Any("error", err))
		return err
	}

	caps := make(map[string]int, len(sources))
	for _, src := range sources {
		if src.MaxArticles > 0 {
			caps[src.ID] = src.MaxArticles
		}
	}
	evicted, err := s.store.Evict(safeCtx, caps)
	if err != nil {
		logger.Error("eviction failed", slog.Any("error", err))
		return fmt.Errorf("refresh: %w", err)
	}
	report.Evicted = evicted
	metrics.RecordEviction(evicted)

	for _, src := range sources {
		n, err := s.store.Count(safeCtx, src.ID)
		if err != nil {
			logger.Warn("count cached articles failed", slog.String("source_id", src.ID), slog.Any("error", err))
			continue
		}
		metrics.UpdateArticlesCached(src.ID, n)
	}
	return nil
}

// refreshSource returns the outcome of one source. The error is non-nil only
// when the cache store failed.
func (s *Service) refreshSource(ctx context.Context, src entity.Source, opts RefreshOptions) (outcome entity.FetchOutcome, err error) {
	logger := logging.FromContext(ctx).With(slog.String("source_id", src.ID))
	ctx, span := tracing.StartSpan(ctx, "fetch.source", attribute.String("source_id", src.ID))
	defer func() {
		span.SetAttributes(attribute.String("outcome", outcome.Kind.String()))
		tracing.EndSpan(span, err)
	}()

	// Store calls run to completion even when the refresh deadline has passed.
	storeCtx := context.WithoutCancel(ctx)
	limit := src.Cap(s.maxArticlesPerSource)

	if err := ctx.Err(); err != nil {
		logger.Info("source not started before refresh ended", slog.Any("reason", err))
		return s.fallback(storeCtx, src, limit, err, "")
	}

	if !opts.Force && opts.FreshWindow > 0 {
		if o, ok, err := s.freshFromCache(storeCtx, src, opts.FreshWindow); err != nil || ok {
			return o, err
		}
	}

	start := s.now()
	raw, attempts, fetchErr := s.fetchWithRetry(ctx, src, opts)
	metrics.RecordFeedFetch(src.ID, s.now().Sub(start), attempts)
	if fetchErr != nil {
		kind := "network"
		if circuitbreaker.ErrOpen(fetchErr) {
			kind = "breaker_open"
		}
		metrics.RecordFeedError(src.ID, kind)
		logger.Warn("failed to fetch feed",
			slog.String("feed_url", src.FeedURL),
			slog.Int("attempts", attempts),
			slog.Any("error", fetchErr))
		return s.fallback(storeCtx, src, limit, networkFailure(src.ID, fetchErr), "")
	}

	parser, ok := s.parsers[sourceType(src)]
	if !ok {
		cause := &entity.ValidationError{Field: "type", Message: "no parser for source type " + src.SourceType, SourceID: src.ID}
		logger.Warn("no parser registered", slog.String("source_type", src.SourceType))
		return s.fallback(storeCtx, src, limit, cause, cause.Error())
	}

	articles, warning, parseErr := parser.Parse(&src, raw)
	if parseErr != nil {
		metrics.RecordFeedError(src.ID, "parse")
		logger.Warn("failed to parse feed", slog.Any("error", parseErr))
		return s.fallback(storeCtx, src, limit, parseFailure(src.ID, parseErr), parseErr.Error())
	}

	n, err := s.store.Upsert(storeCtx, src.ID, articles)
	if err != nil {
		return entity.FetchOutcome{}, err
	}
	if err := s.store.RecordFetchSuccess(storeCtx, src.ID, s.now()); err != nil {
		return entity.FetchOutcome{}, err
	}
	metrics.RecordArticlesMerged(src.ID, n)

	outcome = entity.Fresh(src.ID, n)
	if warning != nil {
		outcome.Warning = warning.String()
		logger.Info("feed parsed with warning", slog.String("warning", warning.String()))
	}
	logger.Debug("source refreshed", slog.Int("articles", n), slog.Int("attempts", attempts))
	return outcome, nil
}

// fetchWithRetry runs the network fetch under retry.WithBackoff. Each attempt
// gets its own PerSourceTimeout; an attempt that runs out of time while ctx is
// still alive is retried.
func (s *Service) fetchWithRetry(ctx context.Context, src entity.Source, opts RefreshOptions) ([]byte, int, error) {
	cfg := retry.FeedFetchConfig(opts.PerSourceRetries, opts.Backoff)
	cfg.Logger = logging.FromContext(ctx).With(slog.String("source_id", src.ID))

	var (
		raw      []byte
		attempts int
	)
	err := retry.WithBackoff(ctx, cfg, func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, opts.PerSourceTimeout)
		defer cancel()

		body, err := s.client.Get(attemptCtx, &src)
		if err != nil {
			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s: %w", retry.ErrAttemptTimeout, opts.PerSourceTimeout, err)
			}
			return err
		}
		raw = body
		return nil
	})
	return raw, attempts, err
}

// fallback serves cached data for a source whose fetch did not succeed.
func (s *Service) fallback(ctx context.Context, src entity.Source, limit int, cause error, warning string) (entity.FetchOutcome, error) {
	cached, err := s.store.ArticlesFor(ctx, src.ID, limit)
	if err != nil {
		return entity.FetchOutcome{}, err
	}

	var outcome entity.FetchOutcome
	if len(cached) == 0 {
		outcome = entity.Empty(src.ID, cause)
	} else {
		last, err := s.store.LastFetchSuccess(ctx, src.ID)
		if err != nil {
			return entity.FetchOutcome{}, err
		}
		outcome = entity.StaleFallback(src.ID, len(cached), last, s.now(), cause)
	}
	outcome.Warning = warning
	return outcome, nil
}

// freshFromCache reports a skipped Fresh outcome when the last success is within window.
func (s *Service) freshFromCache(ctx context.Context, src entity.Source, window time.Duration) (entity.FetchOutcome, bool, error) {
	last, err := s.store.LastFetchSuccess(ctx, src.ID)
	if err != nil {
		return entity.FetchOutcome{}, false, err
	}
	if last == nil || s.now().Sub(*last) >= window {
		return entity.FetchOutcome{}, false, nil
	}
	n, err := s.store.Count(ctx, src.ID)
	if err != nil {
		return entity.FetchOutcome{}, false, err
	}
	outcome := entity.Fresh(src.ID, n)
	outcome.Skipped = true
	outcome.LastSuccess = last
	return outcome, true, nil
}

func enabledOnly(sources []entity.Source) []entity.Source {
	out := make([]entity.Source, 0, len(sources))
	for _, src := range sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

func sourceType(src entity.Source) string {
	if src.SourceType == "" {
		return entity.SourceTypeRSS
	}
	return src.SourceType
}
