// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	StorePostgres = "postgres"
	StoreQdrant   = "qdrant"
)

// ErrInvalidConfig marks configuration that must abort startup.
var ErrInvalidConfig = errors.New("invalid configuration")

type EmbeddingConfig struct {
	Provider  string `env:"EMBEDDING_PROVIDER" envDefault:"ollama"`
	Model     string `env:"EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	Dimension int    `env:"EMBEDDING_DIMENSION" envDefault:"768"`
}

type LLMConfig struct {
	Provider    string  `env:"LLM_PROVIDER" envDefault:"ollama"`
	Model       string  `env:"LLM_MODEL" envDefault:"llama3.1:8b"`
	Temperature float32 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
}

type QdrantConfig struct {
	URL        string `env:"QDRANT_URL" envDefault:"http://localhost:6333"`
	APIKey     string `env:"QDRANT_API_KEY"`
	Collection string `env:"QDRANT_COLLECTION" envDefault:"documents"`
}

type Config struct {
	PostgresDSN string `env:"POSTGRES_DSN" envDefault:"postgres://localhost:5432/docbot?sslmode=disable"`
	OllamaHost  string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	VectorStore string `env:"VECTOR_STORE" envDefault:"postgres"`
	Qdrant      QdrantConfig

	Embeddings EmbeddingConfig
	LLM        LLMConfig

	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"200"`
	TopK         int `env:"TOP_K" envDefault:"5"`

	// MemoryLimit bounds conversation memory to the most recent N
	// exchanges. Zero keeps the full history.
	MemoryLimit int `env:"MEMORY_LIMIT" envDefault:"0"`

	// RecordFailedExchanges appends failed generations to conversation
	// memory instead of dropping them.
	RecordFailedExchanges bool `env:"RECORD_FAILED_EXCHANGES" envDefault:"false"`

	DataDir  string `env:"DATA_DIR" envDefault:"./data"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
}

// Load reads a .env file when present, then parses the environment and
// validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects parameter combinations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrInvalidConfig, c.Embeddings.Dimension)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.MemoryLimit < 0 {
		return fmt.Errorf("%w: memory limit must not be negative, got %d", ErrInvalidConfig, c.MemoryLimit)
	}
	switch c.VectorStore {
	case StorePostgres, StoreQdrant:
	default:
		return fmt.Errorf("%w: unknown vector store %q", ErrInvalidConfig, c.VectorStore)
	}
	return nil
}
