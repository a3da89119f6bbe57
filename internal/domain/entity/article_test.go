package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"newsbot/internal/domain/entity"
)

func TestArticle_SortTime(t *testing.T) {
	firstSeen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	published := time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)

	t.Run("published date wins", func(t *testing.T) {
		a := entity.Article{PublishedAt: &published, FirstSeenAt: firstSeen}
		assert.Equal(t, published, a.SortTime())
	})

	t.Run("falls back to first seen", func(t *testing.T) {
		a := entity.Article{FirstSeenAt: firstSeen}
		assert.Equal(t, firstSeen, a.SortTime())
	})
}

func TestArticle_HasBody(t *testing.T) {
	now := time.Now()

	assert.False(t, (&entity.Article{}).HasBody())
	assert.False(t, (&entity.Article{Body: "text"}).HasBody())
	assert.True(t, (&entity.Article{Body: "text", BodyFetchedAt: &now}).HasBody())
}

func TestArticle_Key(t *testing.T) {
	a := entity.Article{SourceID: "dw", ArticleID: "https://dw.com/a/1"}
	assert.Equal(t, entity.ArticleKey{SourceID: "dw", ArticleID: "https://dw.com/a/1"}, a.Key())
}
