package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/salesrag/salesrag/internal/models"
)

// SQLiteStore keeps chunk records in a SQLite file inside the configured
// directory. Similarity search loads the stored vectors and ranks them by
// cosine similarity in memory, which is plenty for a local docs corpus.
type SQLiteStore struct {
	config Config
	conn   *sql.DB
}

func NewSQLiteStore(config Config) (*SQLiteStore, error) {
	if config.Path == "" {
		config.Path = ".salesdb"
	}
	if config.Collection == "" {
		config.Collection = "local_docs"
	}

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(config.Path, "embeddings.db")
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{config: config, conn: conn}
	if err := s.initialize(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) table() string {
	return s.config.Collection
}

func (s *SQLiteStore) initialize() error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			title TEXT,
			chunk_index INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, s.table())

	if _, err := s.conn.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, records []models.Record) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source_path, title, chunk_index, start_offset, end_offset, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table())

	for _, rec := range records {
		embeddingJSON, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			rec.ID, rec.SourcePath, rec.Title, rec.Index, rec.Start, rec.End,
			rec.Text, string(embeddingJSON)); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error) {
	query := fmt.Sprintf(`
		SELECT id, source_path, title, chunk_index, start_offset, end_offset, content, embedding
		FROM %s`, s.table())

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, models.SearchResult{
			Chunk: rec.Chunk,
			Score: cosineSimilarity(embedding, rec.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table())
	if err := s.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Sample(ctx context.Context, n int) ([]models.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, source_path, title, chunk_index, start_offset, end_offset, content, embedding
		FROM %s ORDER BY rowid LIMIT ?`, s.table())

	rows, err := s.conn.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s", s.table())
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func scanRecord(rows *sql.Rows) (models.Record, error) {
	var rec models.Record
	var embeddingJSON string
	if err := rows.Scan(&rec.ID, &rec.SourcePath, &rec.Title, &rec.Index,
		&rec.Start, &rec.End, &rec.Text, &embeddingJSON); err != nil {
		return rec, fmt.Errorf("failed to scan row: %w", err)
	}
	if err := json.Unmarshal([]byte(embeddingJSON), &rec.Embedding); err != nil {
		return rec, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}
	return rec, nil
}

// cosineSimilarity ranks stored vectors against the query vector.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}
