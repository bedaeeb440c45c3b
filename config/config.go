// Package config loads the pipeline configuration from YAML, applying
// defaults for anything left unset.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelConfig configures the generation and embedding services.
type ModelConfig struct {
	// ChatModel is the generation model name.
	ChatModel string `yaml:"chat_model"`
	// EmbeddingModel is the embedding model name.
	EmbeddingModel string `yaml:"embedding_model"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
	// Temperature for answer generation, in [0,1].
	Temperature float64 `yaml:"temperature"`
}

// ChunkerConfig configures how records are packed into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IndexConfig configures the persistent vector index.
type IndexConfig struct {
	// Path is the SQLite index file; empty selects the in-memory store.
	Path string `yaml:"path"`
	// Workers bounds concurrent embedding calls during a build.
	Workers int `yaml:"workers"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	K int `yaml:"k"`
	// MinSimilarity drops matches scoring below it, in [0,1].
	MinSimilarity float64 `yaml:"min_similarity"`
}

// PromptConfig bounds what the assembled prompt may carry.
type PromptConfig struct {
	MaxContextChars int `yaml:"max_context_chars"`
	MaxHistoryTurns int `yaml:"max_history_turns"`
}

// RetryConfig bounds retries against the external services.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// Config is the root configuration.
type Config struct {
	// Dataset is the property listings CSV.
	Dataset   string          `yaml:"dataset"`
	Model     ModelConfig     `yaml:"model"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Retry     RetryConfig     `yaml:"retry"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Dataset: "zameen.csv",
		Model: ModelConfig{
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			APIKeyEnv:      "OPENAI_API_KEY",
			Temperature:    0,
		},
		Chunker:   ChunkerConfig{Size: 1000, Overlap: 100},
		Index:     IndexConfig{Path: "plotline.db", Workers: 4},
		Retrieval: RetrievalConfig{K: 5, MinSimilarity: 0.2},
		Prompt:    PromptConfig{MaxContextChars: 8000, MaxHistoryTurns: 10},
		Retry:     RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second},
		LogLevel:  "info",
	}
}

// Load reads the config at path. A missing file yields the defaults; a
// present file is unmarshalled over them, so partial files work.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunker.Size <= 0 {
		return fmt.Errorf("chunker.size must be positive, got %d", c.Chunker.Size)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("chunker.overlap must be in [0, size), got %d", c.Chunker.Overlap)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("retrieval.min_similarity must be in [0,1], got %g", c.Retrieval.MinSimilarity)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be in [0,1], got %g", c.Model.Temperature)
	}
	if c.Index.Workers <= 0 {
		return fmt.Errorf("index.workers must be positive, got %d", c.Index.Workers)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	return nil
}
