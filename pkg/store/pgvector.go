package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/salesrag/salesrag/internal/models"
)

// PGVectorStore is the Postgres-backed alternative to the embedded sqlite
// store. Similarity search is pushed down to pgvector's cosine operator.
type PGVectorStore struct {
	config Config
	pool   *pgxpool.Pool
}

func NewPGVectorStore(config Config) (*PGVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &PGVectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize() error {
	ctx := context.Background()

	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			title TEXT,
			chunk_index INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

func (vs *PGVectorStore) Add(ctx context.Context, records []models.Record) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source_path, title, chunk_index, start_offset, end_offset, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		vs.config.TableName)

	for _, rec := range records {
		_, err = tx.Exec(ctx, stmt,
			rec.ID,
			rec.SourcePath,
			rec.Title,
			rec.Index,
			rec.Start,
			rec.End,
			rec.Text,
			pgvector.NewVector(rec.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (vs *PGVectorStore) Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error) {
	query := fmt.Sprintf(`
		SELECT id, source_path, title, chunk_index, start_offset, end_offset, content,
			1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %v", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var res models.SearchResult
		err := rows.Scan(
			&res.ID,
			&res.SourcePath,
			&res.Title,
			&res.Index,
			&res.Start,
			&res.End,
			&res.Text,
			&res.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

func (vs *PGVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.TableName)
	if err := vs.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %v", err)
	}
	return count, nil
}

func (vs *PGVectorStore) Sample(ctx context.Context, n int) ([]models.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, source_path, title, chunk_index, start_offset, end_offset, content, embedding
		FROM %s LIMIT $1`, vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample records: %v", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		var vec pgvector.Vector
		err := rows.Scan(
			&rec.ID,
			&rec.SourcePath,
			&rec.Title,
			&rec.Index,
			&rec.Start,
			&rec.End,
			&rec.Text,
			&vec,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (vs *PGVectorStore) Clear(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s", vs.config.TableName)
	if _, err := vs.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to clear records: %v", err)
	}
	return nil
}

func (vs *PGVectorStore) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}
