package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/salesrag/salesrag/internal/models"
	"github.com/salesrag/salesrag/internal/types"
)

type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	Extensions     []string
	EmbedRateLimit float64 // embedding requests per second
	OnProgress     func(path string, chunks int, err error)
}

// Ingestor walks a documentation folder and writes embedded chunk records to
// the vector store.
type Ingestor struct {
	config   Config
	chunker  Chunker
	embedder types.Embedder
	store    types.VectorStore
	limiter  *rate.Limiter
}

func NewWithConfig(config Config, embedder types.Embedder, store types.VectorStore) *Ingestor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1600
	}
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".html", ".htm"}
	}
	if config.EmbedRateLimit == 0 {
		config.EmbedRateLimit = 10
	}

	return &Ingestor{
		config: config,
		chunker: NewChunker(ChunkerConfig{
			ChunkSize:    config.ChunkSize,
			ChunkOverlap: config.ChunkOverlap,
		}),
		embedder: embedder,
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(config.EmbedRateLimit), 1),
	}
}

// FileResult records the outcome of ingesting one file.
type FileResult struct {
	Path   string
	Chunks int
	Err    error
}

type Report struct {
	Files       []FileResult
	TotalChunks int
}

// Failed returns the number of files that could not be ingested.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Summary renders the report as one line per file, the format shown in the
// ingestion log.
func (r *Report) Summary() string {
	lines := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		if f.Err != nil {
			lines = append(lines, fmt.Sprintf("failed to process %s: %v", f.Path, f.Err))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %d chunks indexed", filepath.Base(f.Path), f.Chunks))
	}
	return strings.Join(lines, "\n")
}

// CountFiles returns how many files under dir would be ingested. Used to size
// progress reporting before a run.
func (ing *Ingestor) CountFiles(dir string) (int, error) {
	total := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && ing.allowed(path) {
			total++
		}
		return nil
	})
	return total, err
}

// IngestDirectory recursively processes every file with an allowed extension
// under dir. A failure on one file is recorded in the report and does not
// abort the rest of the folder.
func (ing *Ingestor) IngestDirectory(ctx context.Context, dir string) (*Report, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("invalid folder path: %s", dir)
	}

	report := &Report{}
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ing.allowed(path) {
			return nil
		}

		n, err := ing.ingestFile(ctx, path)
		report.Files = append(report.Files, FileResult{Path: path, Chunks: n, Err: err})
		report.TotalChunks += n
		if ing.config.OnProgress != nil {
			ing.config.OnProgress(path, n, err)
		}

		return ctx.Err()
	})
	if walkErr != nil {
		return report, walkErr
	}
	return report, nil
}

func (ing *Ingestor) allowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range ing.config.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (ing *Ingestor) ingestFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	title, text, err := ExtractHTML(f)
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}

	spans := ing.chunker.Split(text)
	if len(spans) == 0 {
		return 0, nil
	}

	records := make([]models.Record, 0, len(spans))
	for i, span := range spans {
		if err := ing.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		embedding, err := ing.embedder.EmbedQuery(ctx, span.Text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		records = append(records, models.Record{
			Chunk: models.Chunk{
				ID:         uuid.NewString(),
				SourcePath: path,
				Title:      title,
				Index:      i,
				Start:      span.Start,
				End:        span.End,
				Text:       span.Text,
			},
			Embedding: embedding,
		})
	}

	if err := ing.store.Add(ctx, records); err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	return len(records), nil
}
