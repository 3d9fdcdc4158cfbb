package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/salesrag/salesrag/internal/models"
	"github.com/salesrag/salesrag/internal/types"
	"github.com/salesrag/salesrag/pkg/config"
)

// ErrNoDocuments is returned when retrieval finds nothing to ground an
// answer on.
var ErrNoDocuments = errors.New("no relevant documents found")

// NoDocumentsMessage is the user-facing text shown when the store comes up
// empty for a query.
const NoDocumentsMessage = "No relevant documents were found in the database. " +
	"Please try rephrasing your question or ingesting more documents."

const contextSeparator = "\n\n---\n\n"

// defaultTemplate is the sales-call prompt; overridable via configuration.
var defaultTemplate = config.DefaultPromptTemplate

type Config struct {
	TopK           int
	PromptTemplate string
}

// Engine runs the retrieval-augmented generation pipeline: embed the query,
// fetch the top-k nearest chunks, fill the prompt template, and hand the
// prompt to the generation model.
type Engine struct {
	config   Config
	embedder types.Embedder
	store    types.VectorStore
	chat     types.Generator
}

func NewEngine(config Config, embedder types.Embedder, store types.VectorStore, chat types.Generator) *Engine {
	if config.TopK == 0 {
		config.TopK = 5
	}
	if config.PromptTemplate == "" {
		config.PromptTemplate = defaultTemplate
	}

	return &Engine{
		config:   config,
		embedder: embedder,
		store:    store,
		chat:     chat,
	}
}

// Answer holds the generated text together with the chunks it was grounded on.
type Answer struct {
	Text    string
	Sources []string
	Results []models.SearchResult
}

func (e *Engine) Answer(ctx context.Context, query string) (*Answer, error) {
	results, err := e.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	text, err := e.chat.Generate(ctx, e.BuildPrompt(query, results))
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	return &Answer{
		Text:    text,
		Sources: Sources(results),
		Results: results,
	}, nil
}

// AnswerStream retrieves context for the query and streams the generated
// answer. Tokens arrive on the first channel and a generation failure on the
// second; both close when generation ends. The returned Answer carries the
// sources and retrieved chunks; its Text is empty since the text arrives on
// the channel.
func (e *Engine) AnswerStream(ctx context.Context, query string) (<-chan string, <-chan error, *Answer, error) {
	results, err := e.retrieve(ctx, query)
	if err != nil {
		return nil, nil, nil, err
	}

	stream, errs := e.chat.GenerateStream(ctx, e.BuildPrompt(query, results))

	return stream, errs, &Answer{
		Sources: Sources(results),
		Results: results,
	}, nil
}

func (e *Engine) retrieve(ctx context.Context, query string) ([]models.SearchResult, error) {
	embedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.Query(ctx, embedding, e.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to query store: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoDocuments
	}
	return results, nil
}

// BuildPrompt interpolates the retrieved chunk texts and the literal query
// into the prompt template.
func (e *Engine) BuildPrompt(query string, results []models.SearchResult) string {
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Text
	}

	return strings.NewReplacer(
		"{context}", strings.Join(texts, contextSeparator),
		"{query}", query,
	).Replace(e.config.PromptTemplate)
}

// Sources returns the unique source file names of the results, sorted for
// stable display.
func Sources(results []models.SearchResult) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, res := range results {
		name := filepath.Base(res.SourcePath)
		if !seen[name] {
			sources = append(sources, name)
			seen[name] = true
		}
	}
	sort.Strings(sources)
	return sources
}
