package ingest

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Containers that usually hold the documentation body. Checked in order; the
// first match wins, with <body> as the fallback.
var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

// ExtractHTML parses an HTML document, removes script, style and noscript
// elements, and returns the page title and the visible text with whitespace
// collapsed to single spaces.
func ExtractHTML(r io.Reader) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", err
	}

	doc.Find("script, style, noscript").Remove()

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Untitled Document"
	}

	var content string
	for _, selector := range contentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}

	return title, strings.Join(strings.Fields(content), " "), nil
}
