package ingest

import (
	"strings"
	"unicode/utf8"
)

type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type Chunker struct {
	config ChunkerConfig
}

func NewChunker(config ChunkerConfig) Chunker {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1600
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}

	return Chunker{config: config}
}

// Span is one chunk of text with its byte offsets into the source text.
type Span struct {
	Start int
	End   int
	Text  string
}

// Split cuts text into windows of at most ChunkSize bytes, each sharing
// ChunkOverlap bytes with its predecessor. Windows prefer to end after
// sentence punctuation found in the back half of the window, and never cut
// through a multi-byte rune. Every byte of the input is covered by at least
// one span.
func (c Chunker) Split(text string) []Span {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var spans []Span
	start := 0

	for start < len(text) {
		end := start + c.config.ChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeStartBefore(text, end, start)
			for i := end; i > start+c.config.ChunkSize/2; i-- {
				if isSentenceBoundary(text[i-1]) {
					end = i
					break
				}
			}
		}
		if end == start {
			// window smaller than the rune at start; take the whole rune
			_, size := utf8.DecodeRuneInString(text[start:])
			end = start + size
		}

		spans = append(spans, Span{Start: start, End: end, Text: text[start:end]})
		if end == len(text) {
			break
		}

		next := runeStartBefore(text, end-c.config.ChunkOverlap, start)
		if next <= start {
			// ensure progress even with degenerate overlap settings
			_, size := utf8.DecodeRuneInString(text[start:])
			next = start + size
		}
		start = next
	}

	return spans
}

// runeStartBefore walks pos back to the nearest rune start, not before min.
func runeStartBefore(text string, pos, min int) int {
	for pos > min && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

func isSentenceBoundary(b byte) bool {
	return b == '.' || b == '!' || b == '?' || b == '\n'
}
