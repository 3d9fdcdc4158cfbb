package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHTML(t *testing.T) {
	html := `<html>
<head>
  <title>Pricing Guide</title>
  <style>body { color: red; }</style>
</head>
<body>
  <script>console.log("tracking");</script>
  <h1>Pricing</h1>
  <p>The enterprise plan costs $99 per
     seat per month.</p>
  <noscript>Please enable JavaScript</noscript>
</body>
</html>`

	title, text, err := ExtractHTML(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "Pricing Guide", title)
	assert.Contains(t, text, "Pricing")
	assert.Contains(t, text, "The enterprise plan costs $99 per seat per month.")
	assert.NotContains(t, text, "console.log")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "enable JavaScript")
}

func TestExtractHTMLMissingTitle(t *testing.T) {
	title, text, err := ExtractHTML(strings.NewReader("<html><body><p>hello</p></body></html>"))
	require.NoError(t, err)

	assert.Equal(t, "Untitled Document", title)
	assert.Equal(t, "hello", text)
}

func TestExtractHTMLPrefersMainContent(t *testing.T) {
	html := `<html><head><title>Doc</title></head>
<body>
  <nav>Home | About | Contact</nav>
  <main><p>Only this matters.</p></main>
  <footer>Copyright 2024</footer>
</body></html>`

	_, text, err := ExtractHTML(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "Only this matters.", text)
	assert.NotContains(t, text, "Copyright")
}

func TestExtractHTMLContentDivFallback(t *testing.T) {
	html := `<html><body>
  <div class="sidebar">menu</div>
  <div class="content">Feature overview text.</div>
</body></html>`

	_, text, err := ExtractHTML(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "Feature overview text.", text)
}

func TestExtractHTMLCollapsesWhitespace(t *testing.T) {
	_, text, err := ExtractHTML(strings.NewReader(
		"<html><body><p>spread \n\n  across \t lines</p></body></html>"))
	require.NoError(t, err)

	assert.Equal(t, "spread across lines", text)
}
