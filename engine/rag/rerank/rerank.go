// Package rerank reorders retrieval matches by query relevance. Providers
// form an explicit fallback chain: a hosted cross-encoder first, a local
// lexical scorer when the hosted call fails, and identity ordering when
// nothing can score. Reranking therefore never fails a query.
package rerank

import (
	"context"
	"sort"

	"github.com/bidcraft/bidcraft/engine/rag/vectordb"
	"github.com/bidcraft/bidcraft/pkg/config"
	"github.com/bidcraft/bidcraft/pkg/logger"
)

// Provider scores documents against a query. Scores align with the docs
// slice by index; higher means more relevant.
type Provider interface {
	Name() string
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// Reranker walks its provider chain in order and applies the first
// successful scoring. The vector similarity in Match.Score is never
// overwritten; relevance only changes the ordering.
type Reranker struct {
	providers []Provider
}

// New builds the default chain from config. A disabled config yields an
// empty chain, so matches pass through in retrieval order; a missing API
// key skips the hosted provider and starts at the lexical scorer.
func New(cfg *config.RerankConfig) *Reranker {
	if cfg == nil || !cfg.Enabled {
		return &Reranker{}
	}
	providers := make([]Provider, 0, 2)
	if cfg.APIKey != "" {
		providers = append(providers, newHostedProvider(cfg))
	}
	providers = append(providers, newLexicalProvider())
	return &Reranker{providers: providers}
}

// NewWithProviders builds a reranker over an explicit chain, used by tests
// and callers with custom providers.
func NewWithProviders(providers ...Provider) *Reranker {
	return &Reranker{providers: providers}
}

// Rerank reorders matches by relevance to the query and truncates to topK.
// The sort is stable: documents the scorer cannot separate keep their
// retrieval order. When a provider scores the matches, each one carries its
// relevance in RerankScore; when every provider fails (or none is
// configured) the original order stands and RerankScore stays unset.
func (r *Reranker) Rerank(ctx context.Context, query string, matches []vectordb.Match, topK int) []vectordb.Match {
	if len(matches) == 0 {
		return matches
	}
	out := make([]vectordb.Match, len(matches))
	copy(out, matches)
	if len(r.providers) == 0 {
		return truncate(out, topK)
	}
	docs := make([]string, len(out))
	for i := range out {
		docs[i] = out[i].Text
	}
	log := logger.FromContext(ctx)
	for _, provider := range r.providers {
		scores, err := provider.Score(ctx, query, docs)
		if err != nil {
			log.Warn("rerank provider failed, trying next", "provider", provider.Name(), "error", err)
			continue
		}
		if len(scores) != len(out) {
			log.Warn("rerank provider returned misaligned scores, trying next",
				"provider", provider.Name(), "got", len(scores), "want", len(out))
			continue
		}
		sortByRelevance(out, scores)
		log.Debug("reranked matches", "provider", provider.Name(), "count", len(out))
		return truncate(out, topK)
	}
	log.Warn("all rerank providers failed, keeping retrieval order")
	return truncate(out, topK)
}

// sortByRelevance annotates each match with its provider score and orders
// by it. The vector Score field is left alone.
func sortByRelevance(matches []vectordb.Match, scores []float64) {
	for i := range matches {
		relevance := scores[i]
		matches[i].RerankScore = &relevance
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return *matches[i].RerankScore > *matches[j].RerankScore
	})
}

func truncate(matches []vectordb.Match, topK int) []vectordb.Match {
	if topK > 0 && len(matches) > topK {
		return matches[:topK]
	}
	return matches
}
