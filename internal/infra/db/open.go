// Package db opens and migrates the embedded SQLite cache database.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	pkgconfig "newsbot/internal/pkg/config"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	BusyTimeout     time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
// SQLite in WAL mode allows concurrent readers with a single writer.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
		BusyTimeout:     5 * time.Second,
	}
}

// Open creates the parent directory of path, opens the database in WAL mode,
// applies the pool settings and verifies the connection.
func Open(ctx context.Context, path string, cfg ConnectionConfig) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open(DriverName, DSN(path, cfg.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	slog.Debug("cache database opened",
		slog.String("path", path),
		slog.Int("max_open_conns", cfg.MaxOpenConns))
	return db, nil
}

// DSN builds the modernc.org/sqlite data source name with the pragmas the cache needs.
func DSN(path string, busyTimeout time.Duration) string {
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=foreign_keys(ON)",
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + strings.Join(pragmas, "&")
}

// ConnectionConfigFromEnv reads pool overrides from NEWSBOT_DB_* variables.
// Invalid values fall back to the defaults and are returned as warnings.
func ConnectionConfigFromEnv() (ConnectionConfig, []string) {
	cfg := DefaultConnectionConfig()
	var warnings []string

	positive := func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 64) }

	r := pkgconfig.LoadEnvInt("NEWSBOT_DB_MAX_OPEN_CONNS", cfg.MaxOpenConns, positive)
	cfg.MaxOpenConns = r.Value.(int)
	warnings = append(warnings, r.Warnings...)

	r = pkgconfig.LoadEnvInt("NEWSBOT_DB_MAX_IDLE_CONNS", cfg.MaxIdleConns, positive)
	cfg.MaxIdleConns = r.Value.(int)
	warnings = append(warnings, r.Warnings...)

	r = pkgconfig.LoadEnvDuration("NEWSBOT_DB_BUSY_TIMEOUT", cfg.BusyTimeout, pkgconfig.ValidatePositiveDuration)
	cfg.BusyTimeout = r.Value.(time.Duration)
	warnings = append(warnings, r.Warnings...)

	return cfg, warnings
}
