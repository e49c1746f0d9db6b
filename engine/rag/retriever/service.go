// Package retriever implements the query side of the pipeline: embed the
// question, search the project's vectors, rerank the candidates and trim
// the winners to a token budget.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bidcraft/bidcraft/engine/rag/embedder"
	"github.com/bidcraft/bidcraft/engine/rag/rerank"
	"github.com/bidcraft/bidcraft/engine/rag/vectordb"
	"github.com/bidcraft/bidcraft/pkg/logger"
)

// candidateMultiplier widens the vector search so the reranker has more
// than topK candidates to reorder.
const candidateMultiplier = 3

const defaultTopK = 5

// Options tunes one retrieval call.
type Options struct {
	TopK      int
	MinScore  float64
	MaxTokens int
}

// Retrieved is one passage selected for the query. Score is the vector
// similarity; RerankScore is present only when a rerank provider scored the
// passage.
type Retrieved struct {
	Text          string
	Score         float64
	RerankScore   *float64
	TokenEstimate int
	Metadata      map[string]any
}

// Service runs retrieval. It holds no per-call state and is safe for
// concurrent use.
type Service struct {
	embedder  *embedder.Adapter
	store     vectordb.Store
	reranker  *rerank.Reranker
	estimator TokenEstimator
}

// NewService wires the query path.
func NewService(
	emb *embedder.Adapter,
	store vectordb.Store,
	reranker *rerank.Reranker,
	estimator TokenEstimator,
) (*Service, error) {
	if emb == nil {
		return nil, errors.New("retriever: embedder is required")
	}
	if store == nil {
		return nil, errors.New("retriever: vector store is required")
	}
	if reranker == nil {
		return nil, errors.New("retriever: reranker is required")
	}
	if estimator == nil {
		estimator = NewTokenEstimator()
	}
	return &Service{embedder: emb, store: store, reranker: reranker, estimator: estimator}, nil
}

// Retrieve returns the passages most relevant to the query within one
// project, reranked and trimmed to opts.MaxTokens when set.
func (s *Service) Retrieve(ctx context.Context, projectID int, query string, opts Options) ([]Retrieved, error) {
	if projectID <= 0 {
		return nil, errors.New("retriever: project id is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("retriever: query is required")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}
	matches, err := s.store.Search(ctx, vector, vectordb.SearchOptions{
		TopK:     topK * candidateMultiplier,
		MinScore: opts.MinScore,
		Filters:  map[string]string{"project_id": strconv.Itoa(projectID)},
	})
	if err != nil {
		return nil, fmt.Errorf("retriever: vector search: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	matches = s.reranker.Rerank(ctx, query, matches, topK)
	retrieved := make([]Retrieved, len(matches))
	for i := range matches {
		retrieved[i] = Retrieved{
			Text:          matches[i].Text,
			Score:         matches[i].Score,
			RerankScore:   matches[i].RerankScore,
			TokenEstimate: s.estimator.EstimateTokens(matches[i].Text),
			Metadata:      matches[i].Metadata,
		}
	}
	retrieved = trimToBudget(retrieved, opts.MaxTokens)
	logger.FromContext(ctx).Debug(
		"retrieval executed",
		"project_id", projectID,
		"top_k", topK,
		"results", len(retrieved),
	)
	return retrieved, nil
}

// trimToBudget drops the lowest-ranked passages until the total token
// estimate fits. The best passage always survives.
func trimToBudget(retrieved []Retrieved, maxTokens int) []Retrieved {
	if maxTokens <= 0 {
		return retrieved
	}
	total := 0
	for i := range retrieved {
		total += retrieved[i].TokenEstimate
	}
	for total > maxTokens && len(retrieved) > 1 {
		last := len(retrieved) - 1
		total -= retrieved[last].TokenEstimate
		retrieved = retrieved[:last]
	}
	return retrieved
}
