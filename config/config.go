// Package config loads the engine configuration from YAML with environment
// overrides for the AI endpoints.
package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AIConfig configures the OpenAI-compatible embedding and completion
// endpoints.
type AIConfig struct {
	EmbeddingHost   string `yaml:"embedding_host"`
	CompletionHost  string `yaml:"completion_host"`
	EmbeddingModel  string `yaml:"embedding_model"`
	CompletionModel string `yaml:"completion_model"`
}

// StorageConfig configures the BadgerDB database.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// RetrievalConfig configures chunking and query-time retrieval.
type RetrievalConfig struct {
	ChunkSize       int     `yaml:"chunk_size"`
	ChunkOverlap    int     `yaml:"chunk_overlap"`
	TopK            int     `yaml:"top_k"`
	MinScore        float32 `yaml:"min_score"`
	MaxContextChars int     `yaml:"max_context_chars"`
	PoolSize        int     `yaml:"pool_size"`
}

// SynthesisConfig configures the answer synthesizer.
type SynthesisConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs"`
	MaxAttempts   int     `yaml:"max_attempts"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	EmptyFallback bool    `yaml:"empty_fallback"`
}

// Config is the root configuration structure.
type Config struct {
	AI        AIConfig        `yaml:"ai"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
}

// SynthesisTimeout returns the completion timeout as a duration.
func (c *Config) SynthesisTimeout() time.Duration {
	return time.Duration(c.Synthesis.TimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults. Environment variables override the AI endpoints after
// the file is read.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			EmbeddingHost:   "http://localhost:11434/v1",
			CompletionHost:  "http://localhost:11434/v1",
			EmbeddingModel:  "all-minilm",
			CompletionModel: "mistral",
		},
		Storage: StorageConfig{
			Path: "./data",
		},
		Retrieval: RetrievalConfig{
			ChunkSize:       1000,
			ChunkOverlap:    200,
			TopK:            4,
			MinScore:        0,
			MaxContextChars: 4000,
		},
		Synthesis: SynthesisConfig{
			TimeoutSecs:   30,
			MaxAttempts:   3,
			MaxTokens:     512,
			EmptyFallback: true,
		},
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.AI.EmbeddingHost == "" {
		cfg.AI.EmbeddingHost = def.AI.EmbeddingHost
	}
	if cfg.AI.CompletionHost == "" {
		cfg.AI.CompletionHost = def.AI.CompletionHost
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = def.AI.EmbeddingModel
	}
	if cfg.AI.CompletionModel == "" {
		cfg.AI.CompletionModel = def.AI.CompletionModel
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = def.Storage.Path
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = def.Retrieval.ChunkSize
		if cfg.Retrieval.ChunkOverlap == 0 {
			cfg.Retrieval.ChunkOverlap = def.Retrieval.ChunkOverlap
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = def.Retrieval.MaxContextChars
	}
	if cfg.Synthesis.TimeoutSecs == 0 {
		cfg.Synthesis.TimeoutSecs = def.Synthesis.TimeoutSecs
	}
	if cfg.Synthesis.MaxAttempts == 0 {
		cfg.Synthesis.MaxAttempts = def.Synthesis.MaxAttempts
	}
	if cfg.Synthesis.MaxTokens == 0 {
		cfg.Synthesis.MaxTokens = def.Synthesis.MaxTokens
	}
}

// Environment variables take precedence over the file so deployments can
// point at different AI hosts without editing the config.
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("RAGENGINE_AI_HOST"); host != "" {
		cfg.AI.EmbeddingHost = host
		cfg.AI.CompletionHost = host
	}
	if host := os.Getenv("RAGENGINE_EMBEDDING_HOST"); host != "" {
		cfg.AI.EmbeddingHost = host
	}
	if host := os.Getenv("RAGENGINE_COMPLETION_HOST"); host != "" {
		cfg.AI.CompletionHost = host
	}
	if model := os.Getenv("RAGENGINE_EMBEDDING_MODEL"); model != "" {
		cfg.AI.EmbeddingModel = model
	}
	if model := os.Getenv("RAGENGINE_COMPLETION_MODEL"); model != "" {
		cfg.AI.CompletionModel = model
	}
	if path := os.Getenv("RAGENGINE_DATA_PATH"); path != "" {
		cfg.Storage.Path = path
	}
}
