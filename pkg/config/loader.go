package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix scopes the environment variables consumed by Load, e.g.
// BIDCRAFT_REDIS_HOST or BIDCRAFT_CHUNKING_STRATEGY.
const envPrefix = "BIDCRAFT_"

// Load builds the configuration from defaults overlaid with prefixed
// environment variables. A .env file in the working directory is honored
// when present.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against struct-level rules plus
// cross-field invariants the tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: configuration is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	if cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf(
			"config: chunking overlap %d must be smaller than size %d",
			cfg.Chunking.Overlap,
			cfg.Chunking.Size,
		)
	}
	if cfg.Chunking.SemanticMinTokens > cfg.Chunking.SemanticMaxTokens {
		return fmt.Errorf("config: semantic_min_tokens exceeds semantic_max_tokens")
	}
	if cfg.VectorDB.Provider == "pgvector" && strings.TrimSpace(cfg.VectorDB.DSN) == "" {
		return fmt.Errorf("config: vectordb dsn is required for pgvector")
	}
	return nil
}

// transformEnvKey converts REDIS_PING_TIMEOUT to redis.ping_timeout: the
// first underscore separates the section, the rest stays a field name.
func transformEnvKey(s string) string {
	s = strings.ToLower(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}
