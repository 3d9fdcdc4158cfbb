package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/salesrag/salesrag/internal/models"
	"github.com/salesrag/salesrag/internal/types"
)

const sampleSize = 5

// Report summarizes the contents of a vector store for the inspector tab.
type Report struct {
	Count   int
	Samples []models.Record
}

func Inspect(ctx context.Context, s types.VectorStore) (*Report, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Count: count}
	if count > 0 {
		samples, err := s.Sample(ctx, sampleSize)
		if err != nil {
			return nil, err
		}
		report.Samples = samples
	}
	return report, nil
}

// Render formats the report for display: a count line followed by a snippet
// of each sampled chunk.
func (r *Report) Render(collection string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found collection '%s' with %d embedded chunks.\n", collection, r.Count)

	if len(r.Samples) > 0 {
		fmt.Fprintf(&b, "\n--- Sample of Stored Chunks (up to %d) ---\n", sampleSize)
		for i, rec := range r.Samples {
			fmt.Fprintf(&b, "\nItem #%d\n", i+1)
			fmt.Fprintf(&b, "  Source: %s\n", filepath.Base(rec.SourcePath))
			fmt.Fprintf(&b, "  Title: %s\n", rec.Title)
			fmt.Fprintf(&b, "  Snippet: '%s'\n", snippet(rec.Text, 150))
		}
	}
	return b.String()
}

// snippet truncates text to at most max bytes without splitting a rune.
func snippet(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
