package scraper

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsbot/internal/domain/entity"
	"newsbot/internal/usecase/fetch"
)

// HTMLParser implements fetch.FeedParser for scrape-only sites. It locates
// articles on a listing page with the CSS selectors of the source's
// ScraperConfig. Only metadata is extracted; bodies come from the extractor.
type HTMLParser struct {
	MaxEntries int
	Logger     *slog.Logger
}

// NewHTMLParser creates a parser keeping at most DefaultMaxEntries items.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{MaxEntries: DefaultMaxEntries, Logger: slog.Default()}
}

// Parse implements fetch.FeedParser.
func (p *HTMLParser) Parse(src *entity.Source, raw []byte) ([]entity.Article, *fetch.ParseWarning, error) {
	cfg := src.ScraperConfig
	if cfg == nil || cfg.ItemSelector == "" {
		return nil, nil, &entity.ValidationError{Field: "scraper", Message: "item selector is required", SourceID: src.ID}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, fmt.Errorf("%w: empty document", entity.ErrParseFailure)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse HTML: %w", entity.ErrParseFailure, err)
	}

	limit := p.MaxEntries
	if limit <= 0 {
		limit = DefaultMaxEntries
	}

	var (
		articles []entity.Article
		total    int
	)
	doc.Find(cfg.ItemSelector).EachWithBreak(func(i int, itemEl *goquery.Selection) bool {
		if total == limit {
			return false
		}
		total++
		if a, ok := p.extractItem(src, cfg, i, itemEl); ok {
			articles = append(articles, a)
		}
		return true
	})

	articles = dedupe(articles)
	return articles, fetch.NewParseWarning(total, len(articles)), nil
}

func (p *HTMLParser) extractItem(src *entity.Source, cfg *entity.ScraperConfig, i int, itemEl *goquery.Selection) (entity.Article, bool) {
	logger := p.logger().With(slog.String("source_id", src.ID), slog.Int("index", i))

	title := strings.Join(strings.Fields(selectText(itemEl, cfg.TitleSelector)), " ")
	if title == "" {
		logger.Debug("skipping item with empty title")
		return entity.Article{}, false
	}

	// リンクは子要素、なければ要素自身の href
	href, _ := selectNode(itemEl, cfg.URLSelector).Attr("href")
	itemURL := strings.TrimSpace(href)
	if itemURL == "" {
		logger.Debug("skipping item with empty URL", slog.String("title", title))
		return entity.Article{}, false
	}
	itemURL = makeAbsoluteURL(itemURL, cfg.URLPrefix)

	var summary string
	if cfg.SummarySelector != "" {
		summary = truncateRunes(plainText(selectText(itemEl, cfg.SummarySelector)), SummaryMaxRunes)
	}

	return entity.Article{
		SourceID:    src.ID,
		ArticleID:   itemURL,
		Title:       title,
		Link:        itemURL,
		Summary:     summary,
		PublishedAt: p.parseDate(selectText(itemEl, cfg.DateSelector), cfg.DateFormat),
	}, true
}

func (p *HTMLParser) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func selectNode(el *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return el
	}
	return el.Find(selector).First()
}

func selectText(el *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(el.Find(selector).First().Text())
}

// dateFormats are tried after the configured format.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	"2006.01.02",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"02.01.2006",
}

// parseDate returns nil when the date is missing or unparseable; the cache
// orders such articles by first-seen time.
func (p *HTMLParser) parseDate(dateStr, format string) *time.Time {
	if dateStr == "" {
		return nil
	}
	candidates := dateFormats
	if format != "" {
		candidates = append([]string{format}, dateFormats...)
	}
	for _, layout := range candidates {
		if t, err := time.Parse(layout, dateStr); err == nil {
			utc := t.UTC()
			if !entity.StorableTime(utc) {
				p.logger().Warn("date out of range, using first-seen time", slog.String("date_str", dateStr))
				return nil
			}
			return &utc
		}
	}
	p.logger().Warn("failed to parse date",
		slog.String("date_str", dateStr),
		slog.String("format", format))
	return nil
}
