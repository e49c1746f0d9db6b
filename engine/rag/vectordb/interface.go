// Package vectordb stores chunk embeddings and answers similarity queries.
// Two backends are provided: postgres with the pgvector extension for real
// deployments and an in-memory store for tests and single-process runs.
package vectordb

import "context"

// Provider enumerates supported vector database backends.
type Provider string

const (
	ProviderPGVector Provider = "pgvector"
	ProviderMemory   Provider = "memory"
)

// Record represents a chunk persisted to the vector store.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// SearchOptions controls similarity search execution. Scores are cosine
// similarity in [0, 1] where 1 is identical direction.
type SearchOptions struct {
	TopK     int
	MinScore float64
	Filters  map[string]string
}

// Match captures a similarity search result. Score is the vector
// similarity; RerankScore is set by the reranker when a provider scored the
// match and stays nil when ordering fell back to retrieval order.
type Match struct {
	ID          string
	Score       float64
	RerankScore *float64
	Text        string
	Metadata    map[string]any
}

// Filter specifies delete criteria. IDs and Metadata combine as OR when
// both are set: ids are removed first, then metadata matches.
type Filter struct {
	IDs      []string
	Metadata map[string]string
}

// Store exposes the minimal contract for ingestion and retrieval.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error)
	Delete(ctx context.Context, filter Filter) error
	Count(ctx context.Context, filters map[string]string) (int, error)
	Close(ctx context.Context) error
}

// Config captures normalized connection details for a vector store.
type Config struct {
	Provider    Provider
	DSN         string
	Table       string
	Index       string
	EnsureIndex bool
	Metric      string
	Dimension   int
	MaxTopK     int
}

const defaultTopK = 5

// clampTopK bounds the requested depth to the configured maximum.
func clampTopK(topK, maxTopK int) int {
	if topK <= 0 {
		topK = defaultTopK
	}
	if maxTopK > 0 && topK > maxTopK {
		return maxTopK
	}
	return topK
}
