// Package article provides the reading use cases: cross-source headlines and
// full bodies extracted on demand and kept in the cache.
package article

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsbot/internal/domain/entity"
	"newsbot/internal/observability/metrics"
	"newsbot/internal/repository"
	"newsbot/internal/usecase/fetch"
)

// Body is the readable content of one article.
type Body struct {
	Article entity.Article
	// Available is false when no body could be obtained; Text then holds the summary.
	Available bool
	Text      string
	// Cached is set when the body came from the cache without a network call.
	Cached bool
	// Err is the extraction failure behind Available=false.
	Err error
}

// Service serves cached articles and fills in bodies on demand.
type Service struct {
	Store     repository.CacheStore
	Extractor fetch.ContentExtractor
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Headlines returns at most limitPerSource articles of every source merged by
// recency, cut to total when total > 0.
func (s *Service) Headlines(ctx context.Context, limitPerSource, total int) ([]entity.Article, error) {
	articles, err := s.Store.AllArticles(ctx, limitPerSource)
	if err != nil {
		return nil, fmt.Errorf("headlines: %w", err)
	}
	if total > 0 && len(articles) > total {
		articles = articles[:total]
	}
	return articles, nil
}

// List returns the articles of one source, most recent first.
func (s *Service) List(ctx context.Context, sourceID string, limit int) ([]entity.Article, error) {
	articles, err := s.Store.ArticlesFor(ctx, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", sourceID, err)
	}
	return articles, nil
}

// ReadBody returns the body of an article and marks it read. A stored body is
// returned as is unless force is set. Otherwise the page is extracted and the
// result persisted. Extraction failure is not an error: the returned Body is
// unavailable and carries the summary. Unknown keys report entity.ErrNotFound.
func (s *Service) ReadBody(ctx context.Context, sourceID, articleID string, force bool) (Body, error) {
	a, err := s.Store.Get(ctx, sourceID, articleID)
	if err != nil {
		return Body{}, fmt.Errorf("read %s/%s: %w", sourceID, articleID, err)
	}

	body := Body{Article: *a}
	switch {
	case a.HasBody() && !force:
		metrics.RecordContentFetchCached()
		body.Available, body.Text, body.Cached = true, a.Body, true
	default:
		body = s.extract(ctx, *a)
	}

	// 既読化の失敗で本文表示は止めない
	if err := s.Store.MarkRead(context.WithoutCancel(ctx), sourceID, articleID); err != nil {
		s.logger().Warn("failed to mark article read",
			slog.String("source_id", sourceID),
			slog.String("article_id", articleID),
			slog.Any("error", err))
		return body, nil
	}
	body.Article.Read = true
	return body, nil
}

func (s *Service) extract(ctx context.Context, a entity.Article) Body {
	logger := s.logger().With(
		slog.String("source_id", a.SourceID),
		slog.String("article_id", a.ArticleID))

	text, err := s.Extractor.Extract(ctx, a.Link)
	if err != nil {
		logger.Info("body extraction failed, showing summary",
			slog.String("link", a.Link),
			slog.Any("error", err))
		// 強制再取得に失敗しても保存済み本文は残す
		if a.HasBody() {
			return Body{Article: a, Available: true, Text: a.Body, Cached: true, Err: err}
		}
		return Body{Article: a, Text: a.Summary, Err: err}
	}

	now := s.now()
	if err := s.Store.SetBody(context.WithoutCancel(ctx), a.SourceID, a.ArticleID, text, now); err != nil {
		logger.Warn("failed to store extracted body", slog.Any("error", err))
	} else {
		a.Body, a.BodyFetchedAt = text, &now
	}
	return Body{Article: a, Available: true, Text: text}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
