package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLargestBlock(t *testing.T) {
	page := `<html><head><style>p { color: red }</style><script>var x = "<p>script text</p>";</script></head>
<body>
  <nav><p>Home</p><p>World news</p><p>Sport</p></nav>
  <header><p>Site header with a rather long tagline that should never be chosen</p></header>
  <div class="teaser"><p>Short teaser.</p></div>
  <div class="story">
    <p>The first paragraph of the story.</p>
    <p>The second paragraph of the story.</p>
    <span>not a paragraph</span>
    <p>The third paragraph of the story.</p>
  </div>
  <aside><p>Related: a very long list of related article titles that could be mistaken for content</p></aside>
  <footer><p>Copyright</p></footer>
</body></html>`

	text, err := largestBlock([]byte(page))
	require.NoError(t, err)
	assert.Equal(t,
		"The first paragraph of the story.\n\nThe second paragraph of the story.\n\nThe third paragraph of the story.",
		text)
	assert.NotContains(t, text, "Related")
	assert.NotContains(t, text, "script text")
}

func TestLargestBlock_NoParagraphs(t *testing.T) {
	text, err := largestBlock([]byte(`<html><body><nav>menu</nav><div>Just   some
	text</div></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Just some text", text)
}

func TestNormalizeText(t *testing.T) {
	in := "  line one  \n\n\n\t line   two\n   \n"
	assert.Equal(t, "line one\nline two", normalizeText(in))
	assert.Empty(t, normalizeText(strings.Repeat(" \n", 5)))
}
