package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig()

	assert.Equal(t, 4, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxIdleTime)
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/cache.db", 2*time.Second)

	assert.Equal(t,
		"file:/tmp/cache.db?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dsn)

	assert.Contains(t, DSN("/tmp/cache.db?mode=rwc", time.Second), "mode=rwc&_pragma=busy_timeout(1000)")
}

func TestConnectionConfigFromEnv(t *testing.T) {
	tests := []struct {
		name         string
		env          map[string]string
		wantOpen     int
		wantIdle     int
		wantBusy     time.Duration
		wantWarnings int
	}{
		{
			name:     "defaults",
			env:      map[string]string{},
			wantOpen: 4, wantIdle: 2, wantBusy: 5 * time.Second,
		},
		{
			name: "valid overrides",
			env: map[string]string{
				"NEWSBOT_DB_MAX_OPEN_CONNS": "8",
				"NEWSBOT_DB_MAX_IDLE_CONNS": "3",
				"NEWSBOT_DB_BUSY_TIMEOUT":   "250ms",
			},
			wantOpen: 8, wantIdle: 3, wantBusy: 250 * time.Millisecond,
		},
		{
			name: "invalid values fall back",
			env: map[string]string{
				"NEWSBOT_DB_MAX_OPEN_CONNS": "0",
				"NEWSBOT_DB_MAX_IDLE_CONNS": "many",
				"NEWSBOT_DB_BUSY_TIMEOUT":   "-1s",
			},
			wantOpen: 4, wantIdle: 2, wantBusy: 5 * time.Second, wantWarnings: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"NEWSBOT_DB_MAX_OPEN_CONNS", "NEWSBOT_DB_MAX_IDLE_CONNS", "NEWSBOT_DB_BUSY_TIMEOUT"} {
				t.Setenv(k, tt.env[k])
			}

			cfg, warnings := ConnectionConfigFromEnv()

			assert.Equal(t, tt.wantOpen, cfg.MaxOpenConns)
			assert.Equal(t, tt.wantIdle, cfg.MaxIdleConns)
			assert.Equal(t, tt.wantBusy, cfg.BusyTimeout)
			assert.Len(t, warnings, tt.wantWarnings)
		})
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")

	db, err := Open(context.Background(), path, DefaultConnectionConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	assert.FileExists(t, path)
}
