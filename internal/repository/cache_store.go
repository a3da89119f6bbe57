// Package repository defines the storage contracts used by the use cases.
package repository

import (
	"context"
	"time"

	"newsbot/internal/domain/entity"
)

// CacheStore is the persistent offline article cache.
//
// Every error returned wraps entity.ErrStorageUnavailable, except Get and
// MarkRead which report entity.ErrNotFound for unknown keys.
type CacheStore interface {
	// Upsert merges articles of one source in a single transaction and
	// returns the number of rows merged.
	Upsert(ctx context.Context, sourceID string, articles []entity.Article) (int, error)

	RecordFetchSuccess(ctx context.Context, sourceID string, t time.Time) error
	// LastFetchSuccess returns nil when no success was ever recorded.
	LastFetchSuccess(ctx context.Context, sourceID string) (*time.Time, error)

	// ArticlesFor returns up to limit articles, most recent first.
	ArticlesFor(ctx context.Context, sourceID string, limit int) ([]entity.Article, error)
	// AllArticles returns up to limitPerSource articles of every source, most recent first.
	AllArticles(ctx context.Context, limitPerSource int) ([]entity.Article, error)

	Get(ctx context.Context, sourceID, articleID string) (*entity.Article, error)
	// SetBody stores an extracted body. A vanished key is not an error.
	SetBody(ctx context.Context, sourceID, articleID, text string, t time.Time) error
	MarkRead(ctx context.Context, sourceID, articleID string) error

	// Evict deletes expired rows, then trims every source to its cap.
	// caps overrides the global per-source cap.
	Evict(ctx context.Context, caps map[string]int) (int64, error)
	// Prune deletes everything belonging to sources not in keep.
	Prune(ctx context.Context, keep []string) (int64, error)
	Count(ctx context.Context, sourceID string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
