package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	errMissingDSN       = errors.New("vectordb: dsn is required for pgvector")
	errInvalidDimension = errors.New("vectordb: dimension must be greater than zero")
)

// New instantiates a vector store backed by the requested provider.
func New(ctx context.Context, cfg *Config) (Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderPGVector:
		return newPGStore(ctx, cfg)
	case ProviderMemory:
		return NewMemoryStore(cfg.Dimension, cfg.MaxTopK), nil
	default:
		return nil, fmt.Errorf("vectordb: provider %q is not supported", cfg.Provider)
	}
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("vectordb: config is required")
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.Provider == ProviderPGVector && cfg.DSN == "" {
		return errMissingDSN
	}
	if cfg.Dimension <= 0 {
		return errInvalidDimension
	}
	if cfg.MaxTopK < 0 {
		return errors.New("vectordb: max_top_k must be non-negative")
	}
	return nil
}

// metadataMatches reports whether every filter pair is present in meta.
// Values compare by their string form so numeric ids written as ints still
// match filters expressed as strings.
func metadataMatches(meta map[string]any, filters map[string]string) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
