package models

// Chunk is a contiguous span of cleaned text extracted from one source file.
// Start and End are byte offsets into the cleaned document text. A chunk is
// immutable once created.
type Chunk struct {
	ID         string
	SourcePath string
	Title      string
	Index      int
	Start      int
	End        int
	Text       string
}

// Record pairs a chunk with its embedding vector for persistence.
type Record struct {
	Chunk
	Embedding []float32
}

// SearchResult is a single retrieval hit with its similarity score.
type SearchResult struct {
	Chunk
	Score float32
}
