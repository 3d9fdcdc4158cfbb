package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPromptTemplate is the master prompt for the RAG pipeline. It
// instructs the model to answer strictly from the retrieved context, in plain
// text a salesperson can read to a customer word for word.
const DefaultPromptTemplate = `**ROLE:** You are an AI assistant for a salesperson who is on a live call with a customer.
Your goal is to generate a concise, clean, plain-text response that the salesperson can read word-for-word to the customer.

**CRITICAL INSTRUCTIONS:**
1.  **Base Your Answer on the Context:** Your entire answer MUST be derived exclusively from the [DOCUMENTATION CONTEXT] provided. Do not use any outside knowledge.
2.  **No Formatting:** DO NOT use Markdown, HTML, bullet points, or any other special formatting. The output must be a single block of plain text.
3.  **Stay in Character:** Do not break character. Do not explain your reasoning, mention the context, or refer to yourself as an AI.
4.  **Be Direct and Professional:** Phrase the response as if you are the salesperson speaking directly to the customer.
5.  **Handle Missing Information:** If the answer is not in the provided context, your entire response must be ONLY this exact phrase: "I'll need to follow up with you on that specific question."

---
[DOCUMENTATION CONTEXT]
{context}
---
[CUSTOMER'S QUESTION]
{query}
---
[YOUR RESPONSE (TO BE READ BY SALESPERSON)]
`

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	UI        UIConfig        `yaml:"ui"`
}

type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	MaxTokens      int    `yaml:"max_tokens"`
	// Pointer so an explicit 0 (greedy decoding) survives defaulting
	Temperature    *float64 `yaml:"temperature"`
	PromptTemplate string   `yaml:"prompt_template"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // sqlite or pgvector
	Path       string `yaml:"path"`    // sqlite database directory
	Collection string `yaml:"collection"`
	URL        string `yaml:"url"` // pgvector connection string
	TableName  string `yaml:"table_name"`
	VectorDim  int    `yaml:"vector_dim"`
	BatchSize  int    `yaml:"batch_size"`
}

type IngestConfig struct {
	DocsDir   string `yaml:"docs_dir"`
	ChunkSize int    `yaml:"chunk_size"`
	// Pointer so an explicit 0 (adjacent, non-overlapping chunks) survives
	// defaulting
	ChunkOverlap   *int     `yaml:"chunk_overlap"`
	Extensions     []string `yaml:"extensions"`
	EmbedRateLimit float64  `yaml:"embed_rate_limit"` // embedding requests per second
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type UIConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Streaming bool   `yaml:"streaming"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/salesrag/config.yaml"),
			"/etc/salesrag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.ChatModel == "" {
		config.LLM.ChatModel = "gemma:2b"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == nil {
		temperature := 0.2
		config.LLM.Temperature = &temperature
	}
	if config.LLM.PromptTemplate == "" {
		config.LLM.PromptTemplate = DefaultPromptTemplate
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "sqlite"
	}
	if config.Store.Path == "" {
		config.Store.Path = ".salesdb"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "local_docs"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "documents"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}
	if config.Store.BatchSize == 0 {
		config.Store.BatchSize = 100
	}

	if config.Ingest.DocsDir == "" {
		config.Ingest.DocsDir = filepath.Join("data", "local_docs")
	}
	if config.Ingest.ChunkSize == 0 {
		// roughly 400 tokens of documentation text
		config.Ingest.ChunkSize = 1600
	}
	if config.Ingest.ChunkOverlap == nil {
		overlap := 200
		config.Ingest.ChunkOverlap = &overlap
	}
	if len(config.Ingest.Extensions) == 0 {
		config.Ingest.Extensions = []string{".html", ".htm"}
	}
	if config.Ingest.EmbedRateLimit == 0 {
		config.Ingest.EmbedRateLimit = 10
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}

	if config.UI.Host == "" {
		config.UI.Host = "127.0.0.1"
	}
	if config.UI.Port == 0 {
		config.UI.Port = 7860
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if dbPath := os.Getenv("SALESRAG_DB_PATH"); dbPath != "" {
		config.Store.Path = dbPath
	}
	if docsDir := os.Getenv("SALESRAG_DOCS_DIR"); docsDir != "" {
		config.Ingest.DocsDir = docsDir
	}
}
