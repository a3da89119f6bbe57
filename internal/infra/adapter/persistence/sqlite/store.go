// Package sqlite provides the SQLite implementation of the offline article cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"newsbot/internal/domain/entity"
	"newsbot/internal/infra/db"
	"newsbot/internal/observability/metrics"
	"newsbot/internal/repository"
)

// Policy bounds the cache by age and size.
type Policy struct {
	// ExpiryAge removes articles ingested longer ago than this. Zero disables expiry.
	ExpiryAge time.Duration
	// MaxArticlesPerSource is the cap for sources without their own. Zero disables the cap.
	MaxArticlesPerSource int
}

// DefaultPolicy returns 24h expiry and 50 articles per source.
func DefaultPolicy() Policy {
	return Policy{
		ExpiryAge:            24 * time.Hour,
		MaxArticlesPerSource: 50,
	}
}

// Store implements repository.CacheStore.
// Mutating calls are serialized and each runs in one transaction.
type Store struct {
	db     *sql.DB
	policy Policy
	now    func() time.Time

	mu sync.Mutex
}

var _ repository.CacheStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore wraps an already migrated database.
func NewStore(database *sql.DB, policy Policy, opts ...Option) *Store {
	s := &Store{db: database, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the cache database at path, migrates it and returns a Store.
func Open(ctx context.Context, path string, conn db.ConnectionConfig, policy Policy, opts ...Option) (*Store, error) {
	database, err := db.Open(ctx, path, conn)
	if err != nil {
		return nil, storageErr("open", err)
	}
	if err := db.MigrateUp(ctx, database); err != nil {
		_ = database.Close()
		return nil, storageErr("open", err)
	}
	return NewStore(database, policy, opts...), nil
}

const articleColumns = `source_id, article_id, title, link, author, summary, body,
body_fetched_at, published_at, first_seen_at, ingested_at, is_read`

// 並び順: 公開日時(なければ初回取得日時)降順、取り込み日時降順、記事ID昇順
const recencyOrder = `COALESCE(published_at, first_seen_at) DESC, ingested_at DESC, article_id ASC`

// Upsert merges articles by (source, article id). Existing rows keep their
// body, read flag and first-seen time; everything else is replaced.
func (s *Store) Upsert(ctx context.Context, sourceID string, articles []entity.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	defer observe("upsert", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("upsert: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO articles (source_id, article_id, title, link, author, summary,
                      published_at, first_seen_at, ingested_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source_id, article_id) DO UPDATE SET
    title        = excluded.title,
    link         = excluded.link,
    author       = excluded.author,
    summary      = excluded.summary,
    published_at = excluded.published_at,
    ingested_at  = excluded.ingested_at`)
	if err != nil {
		return 0, storageErr("upsert: prepare", err)
	}
	defer func() { _ = stmt.Close() }()

	seen := make(map[string]struct{}, len(articles))
	for i := range articles {
		a := &articles[i]
		firstSeen := a.FirstSeenAt
		if firstSeen.IsZero() {
			firstSeen = now
		}
		if _, err := stmt.ExecContext(ctx,
			sourceID, a.ArticleID, a.Title, a.Link, a.Author, a.Summary,
			nullTime(a.PublishedAt), firstSeen.UnixNano(), now.UnixNano(),
		); err != nil {
			return 0, storageErr(fmt.Sprintf("upsert %s/%s", sourceID, a.ArticleID), err)
		}
		seen[a.ArticleID] = struct{}{}
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("upsert: commit", err)
	}
	return len(seen), nil
}

// RecordFetchSuccess stores the time of the last successful fetch of a source.
func (s *Store) RecordFetchSuccess(ctx context.Context, sourceID string, t time.Time) error {
	defer observe("record_fetch_success", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO source_fetches (source_id, last_success_at) VALUES (?, ?)
ON CONFLICT(source_id) DO UPDATE SET last_success_at = excluded.last_success_at`,
		sourceID, t.UnixNano())
	if err != nil {
		return storageErr("record fetch success", err)
	}
	return nil
}

// LastFetchSuccess returns nil when the source never fetched successfully.
func (s *Store) LastFetchSuccess(ctx context.Context, sourceID string) (*time.Time, error) {
	var ns int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_success_at FROM source_fetches WHERE source_id = ?`, sourceID).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("last fetch success", err)
	}
	t := time.Unix(0, ns)
	return &t, nil
}

// ArticlesFor returns up to limit articles of one source, most recent first.
// A non-positive limit returns all of them.
func (s *Store) ArticlesFor(ctx context.Context, sourceID string, limit int) ([]entity.Article, error) {
	defer observe("articles_for", time.Now())

	rows, err := s.db.QueryContext(ctx, `
SELECT `+articleColumns+`
FROM articles
WHERE source_id = ?
ORDER BY `+recencyOrder+`
LIMIT ?`, sourceID, sqlLimit(limit))
	if err != nil {
		return nil, storageErr("articles for "+sourceID, err)
	}
	return collect(rows, "articles for "+sourceID)
}

// AllArticles returns up to limitPerSource articles of every source,
// merged across sources by recency.
func (s *Store) AllArticles(ctx context.Context, limitPerSource int) ([]entity.Article, error) {
	defer observe("all_articles", time.Now())

	rows, err := s.db.QueryContext(ctx, `
SELECT `+articleColumns+`
FROM (
    SELECT *, ROW_NUMBER() OVER (PARTITION BY source_id ORDER BY `+recencyOrder+`) AS rn
    FROM articles
)
WHERE ? < 0 OR rn <= ?
ORDER BY `+recencyOrder+`, source_id ASC`, sqlLimit(limitPerSource), sqlLimit(limitPerSource))
	if err != nil {
		return nil, storageErr("all articles", err)
	}
	return collect(rows, "all articles")
}

// Get returns one article or entity.ErrNotFound.
func (s *Store) Get(ctx context.Context, sourceID, articleID string) (*entity.Article, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+articleColumns+`
FROM articles
WHERE source_id = ? AND article_id = ?`, sourceID, articleID)

	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", sourceID, articleID, entity.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return a, nil
}

// SetBody stores the extracted body. Evicted keys are silently ignored.
func (s *Store) SetBody(ctx context.Context, sourceID, articleID, text string, t time.Time) error {
	defer observe("set_body", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
UPDATE articles SET body = ?, body_fetched_at = ?
WHERE source_id = ? AND article_id = ?`, text, t.UnixNano(), sourceID, articleID)
	if err != nil {
		return storageErr("set body", err)
	}
	return nil
}

// MarkRead flags an article as read.
func (s *Store) MarkRead(ctx context.Context, sourceID, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
UPDATE articles SET is_read = 1 WHERE source_id = ? AND article_id = ?`, sourceID, articleID)
	if err != nil {
		return storageErr("mark read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("mark read", err)
	}
	if n == 0 {
		return fmt.Errorf("mark read %s/%s: %w", sourceID, articleID, entity.ErrNotFound)
	}
	return nil
}

// Evict deletes articles ingested before now minus ExpiryAge, then deletes
// the oldest articles of every source beyond its cap. Running it twice in a
// row removes nothing the second time.
func (s *Store) Evict(ctx context.Context, caps map[string]int) (int64, error) {
	defer observe("evict", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("evict: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var removed int64
	if s.policy.ExpiryAge > 0 {
		cutoff := s.now().Add(-s.policy.ExpiryAge).UnixNano()
		res, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE ingested_at < ?`, cutoff)
		if err != nil {
			return 0, storageErr("evict: expire", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	sources, err := distinctSources(ctx, tx)
	if err != nil {
		return 0, err
	}

	for _, sourceID := range sources {
		limit := s.policy.MaxArticlesPerSource
		if c, ok := caps[sourceID]; ok && c > 0 {
			limit = c
		}
		if limit <= 0 {
			continue
		}
		res, err := tx.ExecContext(ctx, `
DELETE FROM articles
WHERE rowid IN (
    SELECT rowid FROM articles
    WHERE source_id = ?
    ORDER BY `+recencyOrder+`
    LIMIT -1 OFFSET ?
)`, sourceID, limit)
		if err != nil {
			return 0, storageErr("evict: cap "+sourceID, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("evict: commit", err)
	}
	return removed, nil
}

// Prune deletes articles and fetch records of every source not listed in keep.
func (s *Store) Prune(ctx context.Context, keep []string) (int64, error) {
	defer observe("prune", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	where := "1 = 1"
	args := make([]interface{}, 0, len(keep))
	if len(keep) > 0 {
		where = "source_id NOT IN (" + strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",") + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("prune: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE `+where, args...)
	if err != nil {
		return 0, storageErr("prune: articles", err)
	}
	removed, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_fetches WHERE `+where, args...); err != nil {
		return 0, storageErr("prune: source fetches", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("prune: commit", err)
	}
	return removed, nil
}

// Count returns the number of cached articles of a source.
func (s *Store) Count(ctx context.Context, sourceID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE source_id = ?`, sourceID).Scan(&n); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return storageErr("close", err)
	}
	return nil
}

/* ───────── helpers ───────── */

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(sc scanner) (*entity.Article, error) {
	var (
		a                         entity.Article
		bodyFetched, published    sql.NullInt64
		firstSeen, ingested, read int64
	)
	if err := sc.Scan(
		&a.SourceID, &a.ArticleID, &a.Title, &a.Link, &a.Author, &a.Summary, &a.Body,
		&bodyFetched, &published, &firstSeen, &ingested, &read,
	); err != nil {
		return nil, err
	}
	a.BodyFetchedAt = timePtr(bodyFetched)
	a.PublishedAt = timePtr(published)
	a.FirstSeenAt = time.Unix(0, firstSeen)
	a.IngestedAt = time.Unix(0, ingested)
	a.Read = read != 0
	return &a, nil
}

func collect(rows *sql.Rows, op string) ([]entity.Article, error) {
	defer func() { _ = rows.Close() }()

	articles := make([]entity.Article, 0, 32)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, storageErr(op+": scan", err)
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op+": rows", err)
	}
	return articles, nil
}

func distinctSources(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT source_id FROM articles`)
	if err != nil {
		return nil, storageErr("evict: list sources", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("evict: list sources", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("evict: list sources", err)
	}
	return ids, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
}

// nullTime stores out-of-range times as NULL rather than letting UnixNano wrap.
func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil || !entity.StorableTime(*t) {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64)
	return &t
}

// sqlLimit maps "no limit" to SQLite's LIMIT -1.
func sqlLimit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

func observe(op string, start time.Time) {
	metrics.RecordDBQuery(op, time.Since(start))
}
