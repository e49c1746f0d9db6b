package config

import (
	"time"
)

// Config is the complete configuration for the RAG pipeline. All services
// receive their settings from here at construction; nothing reads the
// environment after Load returns.
type Config struct {
	Runtime  RuntimeConfig  `koanf:"runtime"`
	Cache    CacheConfig    `koanf:"cache"`
	Redis    RedisConfig    `koanf:"redis"`
	Chunking ChunkingConfig `koanf:"chunking"`
	Embedder EmbedderConfig `koanf:"embedder"`
	Rerank   RerankConfig   `koanf:"rerank"`
	VectorDB VectorDBConfig `koanf:"vectordb"`
	LLM      LLMConfig      `koanf:"llm"`
}

// RuntimeConfig contains process-wide behavior settings.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error"`
	LogJSON     bool   `koanf:"log_json"`
}

// CacheConfig contains cache behavior settings.
type CacheConfig struct {
	Enabled      bool          `koanf:"enabled"`
	DefaultTTL   time.Duration `koanf:"default_ttl"   validate:"min=0"`
	QueryTTL     time.Duration `koanf:"query_ttl"     validate:"min=0"`
	EmbeddingTTL time.Duration `koanf:"embedding_ttl" validate:"min=0"`
	ChatTTL      time.Duration `koanf:"chat_ttl"      validate:"min=0"`
	ExtractTTL   time.Duration `koanf:"extract_ttl"   validate:"min=0"`
	KeyScanCount int           `koanf:"key_scan_count" validate:"min=1"`
	MaxKeyLength int           `koanf:"max_key_length" validate:"min=32"`
}

// RedisConfig contains connection settings for the cache backend.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	Host         string        `koanf:"host"`
	Port         string        `koanf:"port"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"            validate:"min=0"`
	PingTimeout  time.Duration `koanf:"ping_timeout"  validate:"min=0"`
	DialTimeout  time.Duration `koanf:"dial_timeout"  validate:"min=0"`
	ReadTimeout  time.Duration `koanf:"read_timeout"  validate:"min=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"min=0"`
}

// ChunkingConfig selects and tunes the chunking strategy.
type ChunkingConfig struct {
	Strategy            string  `koanf:"strategy"`
	Size                int     `koanf:"size"                 validate:"min=1"`
	Overlap             int     `koanf:"overlap"              validate:"min=0"`
	Separator           string  `koanf:"separator"`
	SemanticThreshold   float64 `koanf:"semantic_threshold"   validate:"gte=0,lte=1"`
	SemanticMinTokens   int     `koanf:"semantic_min_tokens"  validate:"min=1"`
	SemanticMaxTokens   int     `koanf:"semantic_max_tokens"  validate:"min=1"`
	HierarchyParentSize int     `koanf:"hierarchy_parent_size" validate:"min=1"`
	HierarchyChildSize  int     `koanf:"hierarchy_child_size"  validate:"min=1"`
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	Provider  string        `koanf:"provider"  validate:"oneof=openai ollama"`
	Model     string        `koanf:"model"     validate:"required"`
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url"`
	Dimension int           `koanf:"dimension" validate:"min=1"`
	BatchSize int           `koanf:"batch_size" validate:"min=1"`
	CacheSize int           `koanf:"cache_size" validate:"min=0"`
	Timeout   time.Duration `koanf:"timeout"    validate:"min=0"`
}

// RerankConfig configures the reranking provider chain.
type RerankConfig struct {
	Enabled bool          `koanf:"enabled"`
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
}

// VectorDBConfig configures the vector store.
type VectorDBConfig struct {
	Provider    string `koanf:"provider" validate:"oneof=pgvector memory"`
	DSN         string `koanf:"dsn"`
	Table       string `koanf:"table"`
	EnsureIndex bool   `koanf:"ensure_index"`
	Metric      string `koanf:"metric"`
	MaxTopK     int    `koanf:"max_top_k" validate:"min=1"`
}

// LLMConfig configures the completion capability used by chat answers and
// structured extraction.
type LLMConfig struct {
	Provider string        `koanf:"provider" validate:"oneof=openai ollama"`
	Model    string        `koanf:"model"    validate:"required"`
	APIKey   string        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	Timeout  time.Duration `koanf:"timeout"  validate:"min=0"`
}

// Default returns the development configuration. Environment variables
// override these values during Load.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
			LogJSON:     false,
		},
		Cache: CacheConfig{
			Enabled:      true,
			DefaultTTL:   time.Hour,
			QueryTTL:     time.Hour,
			EmbeddingTTL: 24 * time.Hour,
			ChatTTL:      30 * time.Minute,
			ExtractTTL:   24 * time.Hour,
			KeyScanCount: 100,
			MaxKeyLength: 200,
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         "6379",
			DB:           0,
			PingTimeout:  5 * time.Second,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Chunking: ChunkingConfig{
			Strategy:            "fixed",
			Size:                512,
			Overlap:             50,
			Separator:           " ",
			SemanticThreshold:   0.75,
			SemanticMinTokens:   64,
			SemanticMaxTokens:   1024,
			HierarchyParentSize: 2048,
			HierarchyChildSize:  512,
		},
		Embedder: EmbedderConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BatchSize: 64,
			CacheSize: 1024,
			Timeout:   30 * time.Second,
		},
		Rerank: RerankConfig{
			Enabled: true,
			BaseURL: "https://api.cohere.com/v2/rerank",
			Model:   "rerank-v3.5",
			Timeout: 10 * time.Second,
		},
		VectorDB: VectorDBConfig{
			Provider:    "memory",
			Table:       "rag_chunks",
			EnsureIndex: true,
			Metric:      "cosine",
			MaxTopK:     50,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
		},
	}
}
