// Package config loads application settings from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every runtime setting. Defaults suit local development;
// only the OpenAI key is required.
type Config struct {
	OpenAIAPIKey   string
	ChatModel      string
	EmbeddingModel string

	QdrantHost string
	QdrantPort int
	Dimension  int

	ChunkSize    int
	ChunkOverlap int

	EmbedBatchSize   int
	EmbedConcurrency int
	CacheSize        int
	CachePath        string

	RateLimitPerMinute int
	WorkerCount        int

	Namespace string
}

// FromEnv builds a Config from the environment, applying defaults and
// validating required values.
func FromEnv() (*Config, error) {
	cfg := &Config{
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		ChatModel:          getEnv("OPENAI_MODEL", ""),
		EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", ""),
		QdrantHost:         getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:         getEnvInt("QDRANT_PORT", 6334),
		Dimension:          getEnvInt("EMBEDDING_DIMENSION", 1536),
		ChunkSize:          getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 150),
		EmbedBatchSize:     getEnvInt("EMBED_BATCH_SIZE", 100),
		EmbedConcurrency:   getEnvInt("EMBED_CONCURRENCY", 4),
		CacheSize:          getEnvInt("EMBED_CACHE_SIZE", 8192),
		CachePath:          getEnv("EMBED_CACHE_PATH", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		Namespace:          getEnv("NAMESPACE", ""),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.Dimension)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
