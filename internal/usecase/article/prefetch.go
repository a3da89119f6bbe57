package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newsbot/internal/domain/entity"
	"newsbot/internal/observability/metrics"
)

// DefaultPrefetchConcurrency bounds concurrent extractions when the caller passes 0.
const DefaultPrefetchConcurrency = 5

// Prefetch fills in bodies for keys so they can be read offline later.
//
// At most concurrency extractions run at once. Articles that already carry a
// body are not fetched again. A failed extraction or a key that is no longer in
// the cache is reported as unavailable and does not stop the others. Prefetched
// articles are not marked read.
//
// The returned map has one entry per distinct key, true when a body is stored.
// The only error returned wraps entity.ErrStorageUnavailable.
func (s *Service) Prefetch(ctx context.Context, keys []entity.ArticleKey, concurrency int) (map[entity.ArticleKey]bool, error) {
	if concurrency < 1 {
		concurrency = DefaultPrefetchConcurrency
	}
	start := time.Now()

	var mu sync.Mutex
	result := make(map[entity.ArticleKey]bool, len(keys))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	seen := make(map[entity.ArticleKey]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		eg.Go(func() error {
			ok, err := s.prefetchOne(egCtx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			result[key] = ok
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return result, fmt.Errorf("prefetch: %w", err)
	}

	available := 0
	for _, ok := range result {
		if ok {
			available++
		}
	}
	s.logger().Info("prefetch completed",
		slog.Int("articles", len(result)),
		slog.Int("available", available),
		slog.Int("concurrency", concurrency),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

func (s *Service) prefetchOne(ctx context.Context, key entity.ArticleKey) (bool, error) {
	a, err := s.Store.Get(ctx, key.SourceID, key.ArticleID)
	switch {
	case errors.Is(err, entity.ErrNotFound):
		s.logger().Debug("prefetch: article gone",
			slog.String("source_id", key.SourceID),
			slog.String("article_id", key.ArticleID))
		return false, nil
	case err != nil:
		return false, err
	}

	if a.HasBody() {
		metrics.RecordContentFetchCached()
		return true, nil
	}
	// 取得失敗は extract 内でログ済み
	return s.extract(ctx, *a).Available, nil
}
