package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// SchemaVersion is stored in the meta table after a successful migration.
const SchemaVersion = 1

// MigrateUp creates the cache schema. It is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
    source_id       TEXT    NOT NULL,
    article_id      TEXT    NOT NULL,
    title           TEXT    NOT NULL,
    link            TEXT    NOT NULL,
    author          TEXT    NOT NULL DEFAULT '',
    summary         TEXT    NOT NULL DEFAULT '',
    body            TEXT    NOT NULL DEFAULT '',
    body_fetched_at INTEGER,
    published_at    INTEGER,
    first_seen_at   INTEGER NOT NULL,
    ingested_at     INTEGER NOT NULL,
    is_read         INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_id, article_id)
)`,
		`CREATE TABLE IF NOT EXISTS source_fetches (
    source_id       TEXT    PRIMARY KEY,
    last_success_at INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
		// 記事の並び順(公開日時、なければ初回取得日時)
		`CREATE INDEX IF NOT EXISTS idx_articles_source_sort
    ON articles(source_id, COALESCE(published_at, first_seen_at) DESC, ingested_at DESC)`,
		// 期限切れ判定用
		`CREATE INDEX IF NOT EXISTS idx_articles_ingested_at ON articles(ingested_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(SchemaVersion)); err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}
	return nil
}

// MigrateDown drops the cache schema. Use with caution: all cached articles are lost.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{
		`DROP INDEX IF EXISTS idx_articles_ingested_at`,
		`DROP INDEX IF EXISTS idx_articles_source_sort`,
		`DROP TABLE IF EXISTS source_fetches`,
		`DROP TABLE IF EXISTS articles`,
		`DROP TABLE IF EXISTS meta`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	}
	return nil
}

// CurrentSchemaVersion returns the stored schema version, or 0 when the schema is absent.
func CurrentSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var raw string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		var exists int
		if qerr := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'meta'`).Scan(&exists); qerr == nil && exists == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return v, nil
}
