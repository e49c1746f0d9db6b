package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecords() []Record {
	return []Record{
		{
			ID:        "a",
			Text:      "budget section",
			Embedding: []float32{1, 0, 0},
			Metadata:  map[string]any{"project_id": 7, "rfp_document_id": 1},
		},
		{
			ID:        "b",
			Text:      "timeline section",
			Embedding: []float32{0, 1, 0},
			Metadata:  map[string]any{"project_id": 7, "rfp_document_id": 2},
		},
		{
			ID:        "c",
			Text:      "unrelated project",
			Embedding: []float32{0.9, 0.1, 0},
			Metadata:  map[string]any{"project_id": 8, "rfp_document_id": 3},
		},
	}
}

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("Should insert and replace by id", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		require.NoError(t, store.Upsert(ctx, seedRecords()))
		n, err := store.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		require.NoError(t, store.Upsert(ctx, []Record{{
			ID:        "a",
			Text:      "revised budget",
			Embedding: []float32{0, 0, 1},
			Metadata:  map[string]any{"project_id": 7},
		}}))
		n, err = store.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		matches, err := store.Search(ctx, []float32{0, 0, 1}, SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "revised budget", matches[0].Text)
	})

	t.Run("Should reject dimension mismatches", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		err := store.Upsert(ctx, []Record{{ID: "x", Embedding: []float32{1, 2}}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension mismatch")
	})

	t.Run("Should not share memory with the caller", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		rec := Record{ID: "a", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"k": "v"}}
		require.NoError(t, store.Upsert(ctx, []Record{rec}))
		rec.Embedding[0] = -1
		rec.Metadata["k"] = "mutated"

		matches, err := store.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "v", matches[0].Metadata["k"])
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	})
}

func TestMemoryStoreSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("Should rank by cosine similarity descending", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		require.NoError(t, store.Upsert(ctx, seedRecords()))

		matches, err := store.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 3})
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, "a", matches[0].ID)
		assert.Equal(t, "c", matches[1].ID)
		assert.Equal(t, "b", matches[2].ID)
		assert.True(t, matches[0].Score >= matches[1].Score)
		assert.True(t, matches[1].Score >= matches[2].Score)
	})

	t.Run("Should honor metadata filters", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		require.NoError(t, store.Upsert(ctx, seedRecords()))

		matches, err := store.Search(ctx, []float32{1, 0, 0}, SearchOptions{
			TopK:    10,
			Filters: map[string]string{"project_id": "7"},
		})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		for _, m := range matches {
			assert.Equal(t, 7, m.Metadata["project_id"])
		}
	})

	t.Run("Should drop matches below the score floor", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		require.NoError(t, store.Upsert(ctx, seedRecords()))

		matches, err := store.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 10, MinScore: 0.5})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		for _, m := range matches {
			assert.GreaterOrEqual(t, m.Score, 0.5)
		}
	})

	t.Run("Should clamp topK to the configured maximum", func(t *testing.T) {
		store := NewMemoryStore(3, 2)
		require.NoError(t, store.Upsert(ctx, seedRecords()))

		matches, err := store.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 100})
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("Should break score ties by id", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		require.NoError(t, store.Upsert(ctx, []Record{
			{ID: "z", Embedding: []float32{1, 0, 0}},
			{ID: "a", Embedding: []float32{1, 0, 0}},
		}))
		matches, err := store.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 2})
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "a", matches[0].ID)
		assert.Equal(t, "z", matches[1].ID)
	})

	t.Run("Should reject query dimension mismatches", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		_, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 1})
		require.Error(t, err)
	})
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Should delete by id", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		require.NoError(t, store.Upsert(ctx, seedRecords()))
		require.NoError(t, store.Delete(ctx, Filter{IDs: []string{"a", "b"}}))
		n, err := store.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Should delete by metadata filter", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		require.NoError(t, store.Upsert(ctx, seedRecords()))
		require.NoError(t, store.Delete(ctx, Filter{Metadata: map[string]string{"project_id": "7"}}))
		n, err := store.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = store.Count(ctx, map[string]string{"project_id": "8"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Should treat an empty filter as a no-op", func(t *testing.T) {
		store := NewMemoryStore(3, 50)
		require.NoError(t, store.Upsert(ctx, seedRecords()))
		require.NoError(t, store.Delete(ctx, Filter{}))
		n, err := store.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}

func TestStoreFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("Should build a memory store", func(t *testing.T) {
		store, err := New(ctx, &Config{Provider: ProviderMemory, Dimension: 3, MaxTopK: 10})
		require.NoError(t, err)
		require.NotNil(t, store)
	})

	t.Run("Should require a dsn for pgvector", func(t *testing.T) {
		_, err := New(ctx, &Config{Provider: ProviderPGVector, Dimension: 3})
		require.ErrorIs(t, err, errMissingDSN)
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := New(ctx, &Config{Provider: "faiss", Dimension: 3})
		require.Error(t, err)
	})

	t.Run("Should reject a non-positive dimension", func(t *testing.T) {
		_, err := New(ctx, &Config{Provider: ProviderMemory})
		require.ErrorIs(t, err, errInvalidDimension)
	})
}
