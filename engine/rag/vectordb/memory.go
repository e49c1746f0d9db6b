package vectordb

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memoryStore keeps every record in process memory. Search is exact
// brute-force cosine similarity, which is the reference behavior the
// pgvector backend approximates with its index.
type memoryStore struct {
	mu        sync.RWMutex
	dimension int
	maxTopK   int
	records   map[string]Record
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore(dimension, maxTopK int) Store {
	return &memoryStore{
		dimension: dimension,
		maxTopK:   maxTopK,
		records:   make(map[string]Record),
	}
}

func (s *memoryStore) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		rec := records[i]
		if len(rec.Embedding) != s.dimension {
			return fmt.Errorf(
				"memory: record %q dimension mismatch (got %d want %d)",
				rec.ID,
				len(rec.Embedding),
				s.dimension,
			)
		}
		s.records[rec.ID] = Record{
			ID:        rec.ID,
			Text:      rec.Text,
			Embedding: append([]float32(nil), rec.Embedding...),
			Metadata:  cloneMap(rec.Metadata),
		}
	}
	return nil
}

func (s *memoryStore) Search(_ context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("memory: query dimension mismatch (got %d want %d)", len(query), s.dimension)
	}
	topK := clampTopK(opts.TopK, s.maxTopK)
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := make([]Match, 0, len(s.records))
	for _, rec := range s.records {
		if !metadataMatches(rec.Metadata, opts.Filters) {
			continue
		}
		score := cosineSimilarity(rec.Embedding, query)
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, Match{
			ID:       rec.ID,
			Score:    score,
			Text:     rec.Text,
			Metadata: cloneMap(rec.Metadata),
		})
	}
	// Ties break on ID so results are stable across runs.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *memoryStore) Delete(_ context.Context, filter Filter) error {
	if len(filter.IDs) == 0 && len(filter.Metadata) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range filter.IDs {
		delete(s.records, id)
	}
	if len(filter.Metadata) > 0 {
		for id, rec := range s.records {
			if metadataMatches(rec.Metadata, filter.Metadata) {
				delete(s.records, id)
			}
		}
	}
	return nil
}

func (s *memoryStore) Count(_ context.Context, filters map[string]string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(filters) == 0 {
		return len(s.records), nil
	}
	n := 0
	for _, rec := range s.records {
		if metadataMatches(rec.Metadata, filters) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
