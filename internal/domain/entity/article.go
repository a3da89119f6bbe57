// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Article and Source, the per-source
// fetch outcome reported by a refresh, and the domain-specific error taxonomy.
package entity

import "time"

// Article represents a cached news article.
// Its identity is the composite key (SourceID, ArticleID); ArticleID is the feed
// entry id, or the entry link when the feed carries no id.
type Article struct {
	SourceID  string
	ArticleID string
	Title     string
	Link      string
	Author    string
	Summary   string

	// Body holds the lazily extracted full text. Empty until extraction ran.
	Body          string
	BodyFetchedAt *time.Time

	// PublishedAt is nil when the feed omits a date.
	PublishedAt *time.Time
	// FirstSeenAt is set when the article is first stored and never changes.
	FirstSeenAt time.Time
	// IngestedAt is the time the currently stored version was merged.
	IngestedAt time.Time

	Read bool
}

// ArticleKey identifies an article inside the cache.
type ArticleKey struct {
	SourceID  string
	ArticleID string
}

// Key returns the composite identity of the article.
func (a *Article) Key() ArticleKey {
	return ArticleKey{SourceID: a.SourceID, ArticleID: a.ArticleID}
}

// SortTime returns the timestamp used for recency ordering.
// Articles without a published date fall back to the time they were first fetched.
func (a *Article) SortTime() time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.FirstSeenAt
}

// HasBody reports whether a full body has been extracted for the article.
func (a *Article) HasBody() bool {
	return a.Body != "" && a.BodyFetchedAt != nil
}
