package fetcher

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelector lists elements that never hold article text.
const noiseSelector = "script, style, noscript, nav, header, footer, aside, form, iframe"

// largestBlock returns the text of the element whose direct paragraph
// children hold the most text, paragraphs separated by blank lines.
// When no element has paragraph children the body text is returned.
func largestBlock(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find(noiseSelector).Remove()

	var (
		best      []string
		bestRunes int
	)
	doc.Find("p").Parent().Each(func(_ int, block *goquery.Selection) {
		var (
			paras []string
			runes int
		)
		block.ChildrenFiltered("p").Each(func(_ int, p *goquery.Selection) {
			text := collapseSpaces(p.Text())
			if text == "" {
				return
			}
			paras = append(paras, text)
			runes += len([]rune(text))
		})
		if runes > bestRunes {
			best, bestRunes = paras, runes
		}
	})

	if len(best) == 0 {
		return collapseSpaces(doc.Find("body").Text()), nil
	}
	return strings.Join(best, "\n\n"), nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeText trims every line and drops blank runs.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = collapseSpaces(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
