package app_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbot/internal/app"
	"newsbot/internal/config"
	"newsbot/internal/domain/entity"
)

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test</title>
<item><title>First</title><link>%[1]s/articles/1</link><guid>1</guid><pubDate>Fri, 02 Jan 2026 10:00:00 GMT</pubDate><description>One</description></item>
<item><title>Second</title><link>%[1]s/articles/2</link><guid>2</guid><pubDate>Fri, 02 Jan 2026 09:00:00 GMT</pubDate><description>Two</description></item>
</channel></rss>`

const articlePage = `<html><head><title>First</title></head><body><article>
<h1>First</h1>
<p>The committee met on Monday to discuss the budget for the coming year and agreed on a plan.</p>
<p>Members said the plan would be published in full once the remaining details were settled.</p>
</article></body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = fmt.Fprintf(w, feedTemplate, srv.URL)
	})
	mux.HandleFunc("/down.xml", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/articles/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, articlePage)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	cfg.Fetch.PerSourceRetries = 0
	cfg.Fetch.Backoff = time.Millisecond
	cfg.Fetch.PerSourceTimeout = 2 * time.Second
	cfg.Extract.MinTextLength = 20
	cfg.Extract.RequestInterval = 0
	deny := false
	cfg.Extract.DenyPrivateIPs = &deny
	cfg.Sources = []config.SourceDef{
		{ID: "up", Name: "Up", Country: "Poland", RSSURL: baseURL + "/feed.xml"},
		{ID: "down", Name: "Down", Country: "Germany", RSSURL: baseURL + "/down.xml"},
		{ID: "bad", Name: "Bad", Country: "Atlantis", RSSURL: baseURL + "/feed.xml"},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestApp_EndToEnd(t *testing.T) {
	srv := newServer(t)
	cfg := testConfig(t, srv.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	a, err := app.Open(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, []string{"up", "down"}, a.Catalog.IDs())
	assert.Len(t, a.Catalog.Warnings(), 1)

	report, err := a.Refresh(ctx, false)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, entity.OutcomeFresh, report.Outcomes["up"].Kind)
	assert.Equal(t, 2, report.Outcomes["up"].Articles)
	assert.Equal(t, entity.OutcomeEmpty, report.Outcomes["down"].Kind)

	headlines, err := a.Reader.Headlines(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, headlines, 2)
	assert.Equal(t, "First", headlines[0].Title)

	body, err := a.Reader.ReadBody(ctx, "up", "1", false)
	require.NoError(t, err)
	assert.True(t, body.Available)
	assert.False(t, body.Cached)
	assert.True(t, strings.Contains(body.Text, "committee met on Monday"), body.Text)

	body, err = a.Reader.ReadBody(ctx, "up", "1", false)
	require.NoError(t, err)
	assert.True(t, body.Cached)
	assert.True(t, body.Article.Read)
}

func TestApp_ReopenPrunesRemovedSources(t *testing.T) {
	srv := newServer(t)
	cfg := testConfig(t, srv.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	a, err := app.Open(ctx, cfg, logger)
	require.NoError(t, err)
	_, err = a.Refresh(ctx, false)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	cfg.Sources = []config.SourceDef{
		{ID: "other", Name: "Other", Country: "Japan", RSSURL: srv.URL + "/feed.xml"},
	}
	a, err = app.Open(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	n, err := a.Store.Count(ctx, "up")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApp_PrefetchHeadlines(t *testing.T) {
	srv := newServer(t)
	cfg := testConfig(t, srv.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	a, err := app.Open(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Refresh(ctx, false)
	require.NoError(t, err)

	headlines, err := a.Reader.Headlines(ctx, 10, 0)
	require.NoError(t, err)
	keys := make([]entity.ArticleKey, len(headlines))
	for i := range headlines {
		keys[i] = headlines[i].Key()
	}

	available, err := a.Reader.Prefetch(ctx, keys, 2)
	require.NoError(t, err)
	assert.Equal(t, map[entity.ArticleKey]bool{
		{SourceID: "up", ArticleID: "1"}: true,
		{SourceID: "up", ArticleID: "2"}: false,
	}, available)

	first, err := a.Store.Get(ctx, "up", "1")
	require.NoError(t, err)
	assert.Contains(t, first.Body, "committee met on Monday")
}
