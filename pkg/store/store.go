package store

import (
	"fmt"

	"github.com/salesrag/salesrag/internal/types"
)

type Config struct {
	Backend    string // sqlite or pgvector
	Path       string // sqlite database directory
	Collection string
	ConnString string // pgvector connection string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// NewWithConfig opens the configured vector store backend. The sqlite backend
// is the default and keeps everything in a local directory; pgvector is for
// deployments that already run Postgres.
func NewWithConfig(config Config) (types.VectorStore, error) {
	switch config.Backend {
	case "", "sqlite":
		return NewSQLiteStore(config)
	case "pgvector":
		return NewPGVectorStore(config)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", config.Backend)
	}
}
