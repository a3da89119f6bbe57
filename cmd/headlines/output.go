package main

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"newsbot/internal/domain/entity"
	"newsbot/internal/usecase/article"
	"newsbot/internal/usecase/fetch"
	"newsbot/internal/usecase/source"
)

const (
	ruleWidth     = 60
	titleMaxRunes = 70
)

// sourceLookup resolves source ids to definitions.
type sourceLookup interface {
	Get(id string) (entity.Source, bool)
	EnabledSources() []entity.Source
}

func writeHeadlines(w io.Writer, articles []entity.Article, sources sourceLookup) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprintln(w, "  NEWS HEADLINES")
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprintln(w)

	current := ""
	for i := range articles {
		a := &articles[i]
		name := sourceName(sources, a.SourceID)
		if name != current {
			if current != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  [%s]\n", name)
			current = name
		}

		suffix := ""
		if a.PublishedAt != nil {
			suffix = " (" + a.PublishedAt.Local().Format("2006-01-02 15:04") + ")"
		}
		marker := "-"
		if a.Read {
			marker = " "
		}
		fmt.Fprintf(w, "    %s %s%s\n", marker, clip(a.Title, titleMaxRunes), suffix)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	fmt.Fprintf(w, "  Showing %d articles from %d sources\n", len(articles), len(sources.EnabledSources()))
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
}

// writeStatus prints one line per enabled source in catalog order.
func writeStatus(w io.Writer, report fetch.Report, sources sourceLookup) {
	for _, src := range sources.EnabledSources() {
		outcome, ok := report.Outcomes[src.ID]
		if !ok {
			continue
		}
		line := outcome.Status()
		if outcome.Warning != "" {
			line += " (" + outcome.Warning + ")"
		}
		fmt.Fprintf(w, "  %-24s %s\n", clip(src.Name, 24), line)
	}
	fresh, stale, empty := report.Counts()
	fmt.Fprintf(w, "  %d fresh, %d from cache, %d without data in %s\n", fresh, stale, empty, report.Duration.Round(time.Millisecond))
}

func writeBody(w io.Writer, body article.Body) {
	a := body.Article
	fmt.Fprintln(w, a.Title)
	if a.Author != "" {
		fmt.Fprintf(w, "by %s\n", a.Author)
	}
	fmt.Fprintln(w, a.Link)
	fmt.Fprintln(w)
	if !body.Available {
		fmt.Fprintln(w, "[full text unavailable, showing summary]")
	}
	fmt.Fprintln(w, body.Text)
}

// writePrefetch lists the articles whose body could not be stored, then a total.
func writePrefetch(w io.Writer, articles []entity.Article, available map[entity.ArticleKey]bool) {
	ok := 0
	for i := range articles {
		a := &articles[i]
		if available[a.Key()] {
			ok++
			continue
		}
		fmt.Fprintf(w, "  unavailable  %s/%s  %s\n", a.SourceID, a.ArticleID, clip(a.Title, 50))
	}
	fmt.Fprintf(w, "%d/%d article bodies available offline\n", ok, len(articles))
}

func writeSources(w io.Writer, groups []source.CountryGroup) {
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n", g.Country)
		for _, s := range g.Sources {
			fmt.Fprintf(w, "  %-20s %s [%s]\n", s.ID, s.Name, s.SourceType)
		}
	}
}

func sourceName(sources sourceLookup, id string) string {
	if s, ok := sources.Get(id); ok {
		return s.Name
	}
	return "Unknown"
}

// clip cuts s to n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
