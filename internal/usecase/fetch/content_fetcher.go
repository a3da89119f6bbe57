package fetch

import (
	"context"

	"newsbot/internal/domain/entity"
)

// FeedClient retrieves the raw feed document of a source.
// Non-2xx responses are reported as *retry.HTTPError.
type FeedClient interface {
	Get(ctx context.Context, src *entity.Source) ([]byte, error)
}

// FeedParser turns raw feed bytes into normalized articles.
// A malformed body yields an error wrapping entity.ErrParseFailure.
type FeedParser interface {
	Parse(src *entity.Source, raw []byte) ([]entity.Article, *ParseWarning, error)
}

// ContentExtractor retrieves an article page and extracts its main readable
// text. It is stateless and never writes to the cache; failures wrap
// entity.ErrExtractionFailed.
//
// Implementations MUST prevent SSRF, enforce size limits and carry their own timeout.
type ContentExtractor interface {
	Extract(ctx context.Context, link string) (string, error)
}
