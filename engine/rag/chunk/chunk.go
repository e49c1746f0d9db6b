// Package chunk splits documents into ordered text chunks sized for
// embedding. Strategies are pluggable behind a factory; every strategy
// yields chunks in reading order (tree pre-order for hierarchical) and
// degrades to an empty slice on degenerate input instead of failing.
package chunk

import (
	"context"
	"strings"
)

// Metadata keys stamped by strategies. Positional keys (chunk_index,
// total_chunks) are stamped downstream by the document processor, which
// sees the final emitted sequence.
const (
	MetaNodeType    = "node_type"
	MetaParentID    = "parent_id"
	MetaParentIndex = "parent_index"
	MetaChunkSize   = "adaptive_chunk_size"
)

// Node type values for hierarchical chunks.
const (
	NodeTypeParent = "parent"
	NodeTypeChild  = "child"
)

// Document is raw content prior to chunking.
type Document struct {
	Text     string
	Metadata map[string]any
}

// Chunk is one contiguous span of a document's text with its positional
// and source metadata. Immutable once produced.
type Chunk struct {
	Text     string
	Metadata map[string]any
}

// Settings tunes all strategies; strategy-specific fields are ignored by
// the others. Sizes and overlaps are measured in separator-delimited
// tokens.
type Settings struct {
	Size              int
	Overlap           int
	Separator         string
	SemanticThreshold float64
	SemanticMinTokens int
	SemanticMaxTokens int
	ParentSize        int
	ChildSize         int
}

// Embedder is the slice of the embedding capability semantic chunking
// needs.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Deps carries collaborator services a strategy may require.
type Deps struct {
	Embedder Embedder
}

// Strategy turns one document into an ordered chunk sequence. Empty or
// whitespace-only text yields an empty slice, never an error.
type Strategy interface {
	Chunk(ctx context.Context, doc Document) []Chunk
	Name() string
}

func (s Settings) separator() string {
	if s.Separator == "" {
		return " "
	}
	return s.Separator
}

// tokenize splits text on the configured separator, treating newlines as
// separators too so windows never glue lines together.
func (s Settings) tokenize(text string) []string {
	sep := s.separator()
	if sep == " " {
		return strings.Fields(text)
	}
	parts := strings.Split(text, sep)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func cloneMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
