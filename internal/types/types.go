package types

import (
	"context"

	"github.com/salesrag/salesrag/internal/models"
)

// Core interfaces

// Embedder converts text into fixed-length vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for an assembled prompt. GenerateStream
// delivers tokens on the first channel and at most one error on the second;
// both are closed when generation ends. A consumer that stops reading tokens
// early must cancel ctx so the producer can exit.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) (<-chan string, <-chan error)
}

// VectorStore persists embedded chunk records and answers similarity queries.
// Query returns at most k results ordered by descending score.
type VectorStore interface {
	Add(ctx context.Context, records []models.Record) error
	Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Sample(ctx context.Context, n int) ([]models.Record, error)
	Clear(ctx context.Context) error
	Close() error
}
