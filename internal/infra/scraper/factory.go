package scraper

import (
	"newsbot/internal/domain/entity"
	"newsbot/internal/usecase/fetch"
)

// Parsers returns the parser registry keyed by source type.
// maxEntries <= 0 selects DefaultMaxEntries.
func Parsers(maxEntries int) map[string]fetch.FeedParser {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	html := NewHTMLParser()
	html.MaxEntries = maxEntries
	return map[string]fetch.FeedParser{
		entity.SourceTypeRSS:  &RSSParser{MaxEntries: maxEntries},
		entity.SourceTypeHTML: html,
	}
}
