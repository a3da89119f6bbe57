package article_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbot/internal/domain/entity"
)

func key(sourceID, articleID string) entity.ArticleKey {
	return entity.ArticleKey{SourceID: sourceID, ArticleID: articleID}
}

func TestService_Prefetch_ToleratesFailures(t *testing.T) {
	ex := &stubExtractor{text: "body", fail: map[string]bool{"https://b.example.com/1": true}}
	svc, store := setup(t, ex)
	ctx := context.Background()
	require.NoError(t, store.SetBody(ctx, "a", "a0", "stored", fixedNow))

	got, err := svc.Prefetch(ctx, []entity.ArticleKey{
		key("a", "a0"),
		key("a", "a1"),
		key("a", "a2"),
		key("b", "b1"),
		key("a", "a1"),
		key("x", "missing"),
	}, 2)
	require.NoError(t, err)

	assert.Equal(t, map[entity.ArticleKey]bool{
		key("a", "a0"):      true,
		key("a", "a1"):      true,
		key("a", "a2"):      true,
		key("b", "b1"):      false,
		key("x", "missing"): false,
	}, got)
	assert.Equal(t, 3, ex.calls, "stored bodies and duplicate keys are not extracted again")

	a1, err := store.Get(ctx, "a", "a1")
	require.NoError(t, err)
	assert.Equal(t, "body from https://a.example.com/1", a1.Body)
	assert.False(t, a1.Read, "prefetch does not mark articles read")

	b1, err := store.Get(ctx, "b", "b1")
	require.NoError(t, err)
	assert.False(t, b1.HasBody())
}

func TestService_Prefetch_Empty(t *testing.T) {
	ex := &stubExtractor{}
	svc, _ := setup(t, ex)

	got, err := svc.Prefetch(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, ex.calls)
}

func TestService_Prefetch_StorageUnavailable(t *testing.T) {
	svc, store := setup(t, &stubExtractor{})
	require.NoError(t, store.Close())

	_, err := svc.Prefetch(context.Background(), []entity.ArticleKey{key("a", "a0")}, 1)
	assert.ErrorIs(t, err, entity.ErrStorageUnavailable)
}
