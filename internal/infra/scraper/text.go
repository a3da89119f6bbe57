package scraper

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// SummaryMaxRunes is the longest summary kept from a feed entry.
const SummaryMaxRunes = 500

// plainText strips markup and collapses whitespace.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// truncateRunes cuts s to at most n runes, appending an ellipsis when cut.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n-1])) + "…"
}

// makeAbsoluteURL converts a relative URL to absolute using the given prefix.
func makeAbsoluteURL(urlStr string, prefix string) string {
	// Already absolute
	if strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://") {
		return urlStr
	}

	if prefix == "" {
		return urlStr
	}

	prefix = strings.TrimRight(prefix, "/")
	urlStr = strings.TrimLeft(urlStr, "/")

	return prefix + "/" + urlStr
}
