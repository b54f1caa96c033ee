// Copyright (c) 2025 Northbound System
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration for ragcore, read from
// the environment (and an optional .env file) at process start.
type Config struct {
	// Storage (C1)
	StorageBackend string // "fs" | "minio"
	StorageDir     string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	MaxFileSizeBytes int64

	// Ingestion (C6)
	IngestWorkers            int
	IngestAttemptTimeoutSec  int
	IngestMaxAttempts        int
	IngestVisibilityTimeoutSec int

	// Embeddings (C4)
	EmbeddingModelID string
	EmbeddingDim     int
	EmbeddingBackend string // "openai" | "ollama" | "mock"
	OpenAIAPIKey     string
	OllamaBaseURL    string

	// Vector store (C5)
	QdrantAddr string

	// Retrieval (C7)
	RetrievalCacheTTLSec int
	HybridAlpha          float64

	// RAG orchestrator (C8/C9)
	QueryDeadlineMS  int
	GeneratorModelID string

	// Session/Quota store
	SQLitePath string

	// Widget transport (C12)
	WebSocketIdleTimeoutSec int
	WidgetRateLimitPerMinute int

	// Redis (C6 queue, C7 cache, C12 mailbox)
	RedisAddr     string
	RedisDB       int
	RedisPassword string
}

// Load reads configuration from the process environment. An optional
// .env file in the working directory is loaded first (missing file is not
// an error), matching the teacher's startup sequence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("STORAGE_BACKEND", "fs")
	v.SetDefault("STORAGE_DIR", "./data/storage")
	v.SetDefault("MINIO_ENDPOINT", "127.0.0.1:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "ragcore")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("MAX_FILE_SIZE_BYTES", int64(25*1024*1024))

	v.SetDefault("INGEST_WORKERS", 4)
	v.SetDefault("INGEST_ATTEMPT_TIMEOUT_SEC", 300)
	v.SetDefault("INGEST_MAX_ATTEMPTS", 5)
	v.SetDefault("INGEST_VISIBILITY_TIMEOUT_SEC", 60)

	v.SetDefault("EMBEDDING_MODEL_ID", "text-embedding-3-small")
	v.SetDefault("EMBEDDING_DIM", 384)
	v.SetDefault("EMBEDDING_BACKEND", "mock")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OLLAMA_BASE_URL", "http://127.0.0.1:11434")

	v.SetDefault("QDRANT_ADDR", "127.0.0.1:6334")

	v.SetDefault("RETRIEVAL_CACHE_TTL_SEC", 300)
	v.SetDefault("HYBRID_ALPHA", 0.6)

	v.SetDefault("QUERY_DEADLINE_MS", 30000)
	v.SetDefault("GENERATOR_MODEL_ID", "gpt-4o-mini")

	v.SetDefault("SQLITE_PATH", "./data/ragcore.db")

	v.SetDefault("WEBSOCKET_IDLE_TIMEOUT_SEC", 120)
	v.SetDefault("WIDGET_RATE_LIMIT_PER_MINUTE", 60)

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PASSWORD", "")

	cfg := &Config{
		StorageBackend: v.GetString("STORAGE_BACKEND"),
		StorageDir:     v.GetString("STORAGE_DIR"),
		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),

		MaxFileSizeBytes: v.GetInt64("MAX_FILE_SIZE_BYTES"),

		IngestWorkers:              v.GetInt("INGEST_WORKERS"),
		IngestAttemptTimeoutSec:    v.GetInt("INGEST_ATTEMPT_TIMEOUT_SEC"),
		IngestMaxAttempts:          v.GetInt("INGEST_MAX_ATTEMPTS"),
		IngestVisibilityTimeoutSec: v.GetInt("INGEST_VISIBILITY_TIMEOUT_SEC"),

		EmbeddingModelID: v.GetString("EMBEDDING_MODEL_ID"),
		EmbeddingDim:     v.GetInt("EMBEDDING_DIM"),
		EmbeddingBackend: v.GetString("EMBEDDING_BACKEND"),
		OpenAIAPIKey:     v.GetString("OPENAI_API_KEY"),
		OllamaBaseURL:    v.GetString("OLLAMA_BASE_URL"),

		QdrantAddr: v.GetString("QDRANT_ADDR"),

		RetrievalCacheTTLSec: v.GetInt("RETRIEVAL_CACHE_TTL_SEC"),
		HybridAlpha:          v.GetFloat64("HYBRID_ALPHA"),

		QueryDeadlineMS:  v.GetInt("QUERY_DEADLINE_MS"),
		GeneratorModelID: v.GetString("GENERATOR_MODEL_ID"),

		SQLitePath: v.GetString("SQLITE_PATH"),

		WebSocketIdleTimeoutSec:  v.GetInt("WEBSOCKET_IDLE_TIMEOUT_SEC"),
		WidgetRateLimitPerMinute: v.GetInt("WIDGET_RATE_LIMIT_PER_MINUTE"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisDB:       v.GetInt("REDIS_DB"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
	}

	if cfg.EmbeddingBackend == "openai" && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("config: EMBEDDING_BACKEND=openai requires OPENAI_API_KEY")
	}
	if cfg.StorageBackend != "fs" && cfg.StorageBackend != "minio" {
		return nil, fmt.Errorf("config: unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

// QueryDeadline is QueryDeadlineMS as a time.Duration.
func (c *Config) QueryDeadline() time.Duration {
	return time.Duration(c.QueryDeadlineMS) * time.Millisecond
}

// RetrievalCacheTTL is RetrievalCacheTTLSec as a time.Duration.
func (c *Config) RetrievalCacheTTL() time.Duration {
	return time.Duration(c.RetrievalCacheTTLSec) * time.Second
}

// IngestAttemptTimeout is IngestAttemptTimeoutSec as a time.Duration.
func (c *Config) IngestAttemptTimeout() time.Duration {
	return time.Duration(c.IngestAttemptTimeoutSec) * time.Second
}

// IngestVisibilityTimeout is IngestVisibilityTimeoutSec as a time.Duration.
func (c *Config) IngestVisibilityTimeout() time.Duration {
	return time.Duration(c.IngestVisibilityTimeoutSec) * time.Second
}

// WebSocketIdleTimeout is WebSocketIdleTimeoutSec as a time.Duration.
func (c *Config) WebSocketIdleTimeout() time.Duration {
	return time.Duration(c.WebSocketIdleTimeoutSec) * time.Second
}
