package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/salesrag/salesrag/pkg/llm"
)

func TestNewEmbedder(t *testing.T) {
	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:   "nomic-embed-text",
		BaseURL: "http://localhost:11434",
	})
	assert.NoError(t, err)
	assert.NotNil(t, embedder)
}

func TestNewEmbedderDefaults(t *testing.T) {
	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{})
	assert.NoError(t, err)
	assert.NotNil(t, embedder)
}
