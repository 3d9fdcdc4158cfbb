package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20})

	assert.Nil(t, chunker.Split(""))
	assert.Nil(t, chunker.Split("   \n\t  "))
}

func TestSplitShortInput(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 100, ChunkOverlap: 20})

	spans := chunker.Split("short text")
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len("short text"), spans[0].End)
	assert.Equal(t, "short text", spans[0].Text)
}

func TestSplitRespectsMaxSize(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 50, ChunkOverlap: 10})
	text := strings.Repeat("word ", 100)

	spans := chunker.Split(text)
	require.NotEmpty(t, spans)
	for _, span := range spans {
		assert.LessOrEqual(t, len(span.Text), 50)
		assert.Equal(t, span.Text, strings.TrimSpace(text)[span.Start:span.End])
	}
}

func TestSplitCoversAllBytes(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 40, ChunkOverlap: 8})
	text := strings.TrimSpace(strings.Repeat("The product supports single sign-on. ", 30))

	spans := chunker.Split(text)
	require.NotEmpty(t, spans)

	// Consecutive spans must overlap or touch so no byte is skipped
	assert.Equal(t, 0, spans[0].Start)
	for i := 1; i < len(spans); i++ {
		assert.LessOrEqual(t, spans[i].Start, spans[i-1].End)
		assert.Greater(t, spans[i].End, spans[i-1].End)
	}
	assert.Equal(t, len(text), spans[len(spans)-1].End)
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 60, ChunkOverlap: 10})
	text := "First sentence of the documentation ends here. The second sentence is fairly long and keeps going well past the window."

	spans := chunker.Split(text)
	require.Greater(t, len(spans), 1)
	assert.True(t, strings.HasSuffix(spans[0].Text, "."),
		"first span should end at sentence punctuation, got %q", spans[0].Text)
}

func TestSplitKeepsRunesIntact(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 50, ChunkOverlap: 10})
	text := strings.Repeat("€", 100)

	spans := chunker.Split(text)
	require.NotEmpty(t, spans)
	for _, span := range spans {
		assert.True(t, utf8.ValidString(span.Text), "span %q is not valid UTF-8", span.Text)
		assert.LessOrEqual(t, len(span.Text), 50)
	}
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(text), spans[len(spans)-1].End)
}

func TestSplitKeepsRunesIntactInMixedText(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 30, ChunkOverlap: 5})
	text := strings.Repeat("prix 9,99 € par siège ", 20)

	spans := chunker.Split(text)
	require.NotEmpty(t, spans)
	for i, span := range spans {
		assert.True(t, utf8.ValidString(span.Text))
		if i > 0 {
			assert.LessOrEqual(t, span.Start, spans[i-1].End)
		}
	}
	assert.Equal(t, len(strings.TrimSpace(text)), spans[len(spans)-1].End)
}

func TestSplitHonorsZeroOverlap(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 150, ChunkOverlap: 0})
	text := strings.Repeat("a", 1000)

	spans := chunker.Split(text)
	require.Len(t, spans, 7)
	for i := 1; i < len(spans); i++ {
		assert.Equal(t, spans[i-1].End, spans[i].Start)
	}
	assert.Equal(t, len(text), spans[len(spans)-1].End)
}

func TestSplitMakesProgressWithDegenerateOverlap(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{ChunkSize: 10, ChunkOverlap: 9})
	text := strings.Repeat("a", 50)

	spans := chunker.Split(text)
	require.NotEmpty(t, spans)
	for i := 1; i < len(spans); i++ {
		assert.Greater(t, spans[i].Start, spans[i-1].Start)
	}
	assert.Equal(t, len(text), spans[len(spans)-1].End)
}
