// Package scraper turns raw feed documents into normalized articles.
// RSS 2.0, Atom and JSON Feed are parsed with gofeed; scrape-only HTML
// listing pages are parsed with goquery selectors.
package scraper

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"newsbot/internal/domain/entity"
	"newsbot/internal/usecase/fetch"
)

// DefaultMaxEntries is the number of entries kept from a single document.
const DefaultMaxEntries = 50

// RSSParser implements fetch.FeedParser for syndication feeds.
// It is stateless and safe for concurrent use.
type RSSParser struct {
	// MaxEntries limits the entries read from one document. Zero means DefaultMaxEntries.
	MaxEntries int
}

// NewRSSParser creates a parser keeping at most DefaultMaxEntries entries.
func NewRSSParser() *RSSParser {
	return &RSSParser{MaxEntries: DefaultMaxEntries}
}

// Parse implements fetch.FeedParser.
func (p *RSSParser) Parse(src *entity.Source, raw []byte) ([]entity.Article, *fetch.ParseWarning, error) {
	return p.ParseFeed(src.ID, raw)
}

// ParseFeed parses an RSS/Atom/JSON document. Malformed or undetectable
// bodies return an error wrapping entity.ErrParseFailure. Entries without a
// title or a link are skipped; the warning reports how many.
func (p *RSSParser) ParseFeed(sourceID string, raw []byte) ([]entity.Article, *fetch.ParseWarning, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, fmt.Errorf("%w: empty document", entity.ErrParseFailure)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", entity.ErrParseFailure, err)
	}

	entries := feed.Items
	if limit := p.maxEntries(); len(entries) > limit {
		entries = entries[:limit]
	}

	articles := make([]entity.Article, 0, len(entries))
	for _, it := range entries {
		if it == nil {
			continue
		}
		a, ok := toArticle(sourceID, it)
		if !ok {
			continue
		}
		articles = append(articles, a)
	}

	articles = dedupe(articles)
	return articles, fetch.NewParseWarning(len(entries), len(articles)), nil
}

func (p *RSSParser) maxEntries() int {
	if p == nil || p.MaxEntries <= 0 {
		return DefaultMaxEntries
	}
	return p.MaxEntries
}

func toArticle(sourceID string, it *gofeed.Item) (entity.Article, bool) {
	title := plainText(it.Title)
	link := strings.TrimSpace(it.Link)
	if link == "" && len(it.Links) > 0 {
		link = strings.TrimSpace(it.Links[0])
	}
	if title == "" || link == "" {
		return entity.Article{}, false
	}

	id := strings.TrimSpace(it.GUID)
	if id == "" {
		id = link
	}

	// Description優先、なければContent
	summary := it.Description
	if strings.TrimSpace(summary) == "" {
		summary = it.Content
	}

	return entity.Article{
		SourceID:    sourceID,
		ArticleID:   id,
		Title:       title,
		Link:        link,
		Author:      author(it),
		Summary:     truncateRunes(plainText(summary), SummaryMaxRunes),
		PublishedAt: published(it),
	}, true
}

func author(it *gofeed.Item) string {
	if it.Author != nil && it.Author.Name != "" {
		return strings.TrimSpace(it.Author.Name)
	}
	for _, a := range it.Authors {
		if a != nil && a.Name != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	return ""
}

func published(it *gofeed.Item) *time.Time {
	var t *time.Time
	switch {
	case it.PublishedParsed != nil:
		t = it.PublishedParsed
	case it.UpdatedParsed != nil:
		t = it.UpdatedParsed
	default:
		return nil
	}
	utc := t.UTC()
	if !entity.StorableTime(utc) {
		return nil
	}
	return &utc
}

// dedupe keeps the first occurrence of each article id.
func dedupe(articles []entity.Article) []entity.Article {
	seen := make(map[string]struct{}, len(articles))
	out := articles[:0]
	for _, a := range articles {
		if _, ok := seen[a.ArticleID]; ok {
			continue
		}
		seen[a.ArticleID] = struct{}{}
		out = append(out, a)
	}
	return out
}
