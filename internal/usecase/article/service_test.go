package article_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbot/internal/domain/entity"
	"newsbot/internal/infra/adapter/persistence/sqlite"
	"newsbot/internal/infra/db"
	"newsbot/internal/usecase/article"
)

/*────────────────────  スタブ  ────────────────────*/

type stubExtractor struct {
	text string
	err  error
	// fail lists links that always fail to extract.
	fail map[string]bool

	mu    sync.Mutex
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, link string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.fail[link] {
		return "", fmt.Errorf("%w: HTTP 404", entity.ErrExtractionFailed)
	}
	return s.text + " from " + link, nil
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, ex *stubExtractor) (*article.Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"),
		db.DefaultConnectionConfig(), sqlite.DefaultPolicy(),
		sqlite.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, src := range []string{"a", "b"} {
		var batch []entity.Article
		for i := 0; i < 4; i++ {
			published := fixedNow.Add(-time.Duration(i*2) * time.Hour)
			if src == "b" {
				published = published.Add(-time.Hour)
			}
			batch = append(batch, entity.Article{
				ArticleID:   fmt.Sprintf("%s%d", src, i),
				Title:       "Title",
				Link:        fmt.Sprintf("https://%s.example.com/%d", src, i),
				Summary:     "summary " + src,
				PublishedAt: &published,
			})
		}
		_, err := store.Upsert(context.Background(), src, batch)
		require.NoError(t, err)
	}

	return &article.Service{Store: store, Extractor: ex, Now: func() time.Time { return fixedNow }}, store
}

func articleIDs(as []entity.Article) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.ArticleID
	}
	return out
}

/*────────────────────  Headlines / List  ────────────────────*/

func TestService_Headlines(t *testing.T) {
	svc, _ := setup(t, &stubExtractor{})

	all, err := svc.Headlines(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "b0", "a1", "b1", "a2", "b2", "a3", "b3"}, articleIDs(all))

	limited, err := svc.Headlines(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "b0", "a1"}, articleIDs(limited))
}

func TestService_List(t *testing.T) {
	svc, _ := setup(t, &stubExtractor{})

	got, err := svc.List(context.Background(), "b", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b0", "b1"}, articleIDs(got))
}

/*────────────────────  ReadBody  ────────────────────*/

func TestService_ReadBody_ExtractsAndCaches(t *testing.T) {
	ex := &stubExtractor{text: "full text"}
	svc, store := setup(t, ex)
	ctx := context.Background()

	body, err := svc.ReadBody(ctx, "a", "a1", false)
	require.NoError(t, err)
	assert.True(t, body.Available)
	assert.False(t, body.Cached)
	assert.Equal(t, "full text from https://a.example.com/1", body.Text)
	assert.True(t, body.Article.Read)

	stored, err := store.Get(ctx, "a", "a1")
	require.NoError(t, err)
	assert.Equal(t, body.Text, stored.Body)
	require.NotNil(t, stored.BodyFetchedAt)
	assert.True(t, stored.BodyFetchedAt.Equal(fixedNow))
	assert.True(t, stored.Read)

	// 2回目はキャッシュから
	again, err := svc.ReadBody(ctx, "a", "a1", false)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, 1, ex.calls)

	// force で再取得
	_, err = svc.ReadBody(ctx, "a", "a1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, ex.calls)
}

func TestService_ReadBody_ExtractionFailureShowsSummary(t *testing.T) {
	cause := fmt.Errorf("extract: %w: page gone", entity.ErrExtractionFailed)
	svc, store := setup(t, &stubExtractor{err: cause})

	body, err := svc.ReadBody(context.Background(), "b", "b2", false)
	require.NoError(t, err, "extraction failure is never fatal")
	assert.False(t, body.Available)
	assert.Equal(t, "summary b", body.Text)
	assert.ErrorIs(t, body.Err, entity.ErrExtractionFailed)

	stored, err := store.Get(context.Background(), "b", "b2")
	require.NoError(t, err)
	assert.Empty(t, stored.Body)
	assert.True(t, stored.Read)
}

func TestService_ReadBody_ForcedFailureKeepsStoredBody(t *testing.T) {
	ex := &stubExtractor{text: "first"}
	svc, _ := setup(t, ex)
	ctx := context.Background()

	_, err := svc.ReadBody(ctx, "a", "a0", false)
	require.NoError(t, err)

	ex.err = fmt.Errorf("%w: timeout", entity.ErrExtractionFailed)
	body, err := svc.ReadBody(ctx, "a", "a0", true)
	require.NoError(t, err)
	assert.True(t, body.Available)
	assert.Equal(t, "first from https://a.example.com/0", body.Text)
	assert.Error(t, body.Err)
}

func TestService_ReadBody_NotFound(t *testing.T) {
	svc, _ := setup(t, &stubExtractor{})

	_, err := svc.ReadBody(context.Background(), "a", "missing", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}
