package retriever

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidcraft/bidcraft/engine/rag/embedder"
	"github.com/bidcraft/bidcraft/engine/rag/rerank"
	"github.com/bidcraft/bidcraft/engine/rag/vectordb"
	"github.com/bidcraft/bidcraft/pkg/config"
)

const testDimension = 4

type axisEmbedder struct{}

func (axisEmbedder) embed(text string) []float32 {
	v := make([]float32, testDimension)
	switch {
	case strings.Contains(text, "budget"):
		v[0] = 1
	case strings.Contains(text, "timeline"):
		v[1] = 1
	default:
		v[2] = 1
	}
	return v
}

func (e axisEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e axisEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

type wordEstimator struct{}

func (wordEstimator) EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

func newTestRetriever(t *testing.T) (*Service, vectordb.Store) {
	t.Helper()
	cfg := config.Default().Embedder
	cfg.Dimension = testDimension
	adapter, err := embedder.Wrap(&cfg, axisEmbedder{})
	require.NoError(t, err)
	store := vectordb.NewMemoryStore(testDimension, 50)
	svc, err := NewService(adapter, store, rerank.NewWithProviders(), wordEstimator{})
	require.NoError(t, err)
	return svc, store
}

func seedStore(t *testing.T, store vectordb.Store) {
	t.Helper()
	err := store.Upsert(context.Background(), []vectordb.Record{
		{
			ID:        "1",
			Text:      "the budget allocation covers hardware and staffing",
			Embedding: []float32{1, 0, 0, 0},
			Metadata:  map[string]any{"project_id": 7},
		},
		{
			ID:        "2",
			Text:      "the delivery timeline spans three quarters",
			Embedding: []float32{0, 1, 0, 0},
			Metadata:  map[string]any{"project_id": 7},
		},
		{
			ID:        "3",
			Text:      "another project budget entirely",
			Embedding: []float32{1, 0, 0, 0},
			Metadata:  map[string]any{"project_id": 8},
		},
	})
	require.NoError(t, err)
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return the most similar passage first", func(t *testing.T) {
		svc, store := newTestRetriever(t)
		seedStore(t, store)

		retrieved, err := svc.Retrieve(ctx, 7, "what is the budget", Options{TopK: 2})
		require.NoError(t, err)
		require.NotEmpty(t, retrieved)
		assert.Contains(t, retrieved[0].Text, "budget")
		assert.Greater(t, retrieved[0].TokenEstimate, 0)
	})

	t.Run("Should scope results to the project", func(t *testing.T) {
		svc, store := newTestRetriever(t)
		seedStore(t, store)

		retrieved, err := svc.Retrieve(ctx, 7, "what is the budget", Options{TopK: 10})
		require.NoError(t, err)
		for _, r := range retrieved {
			assert.Equal(t, 7, r.Metadata["project_id"])
		}
	})

	t.Run("Should return nil when nothing matches", func(t *testing.T) {
		svc, store := newTestRetriever(t)
		seedStore(t, store)

		retrieved, err := svc.Retrieve(ctx, 99, "what is the budget", Options{TopK: 5})
		require.NoError(t, err)
		assert.Nil(t, retrieved)
	})

	t.Run("Should trim passages to the token budget keeping the best", func(t *testing.T) {
		svc, store := newTestRetriever(t)
		seedStore(t, store)

		retrieved, err := svc.Retrieve(ctx, 7, "what is the budget", Options{TopK: 10, MaxTokens: 8})
		require.NoError(t, err)
		require.Len(t, retrieved, 1)
		assert.Contains(t, retrieved[0].Text, "budget")
	})

	t.Run("Should validate input", func(t *testing.T) {
		svc, _ := newTestRetriever(t)
		_, err := svc.Retrieve(ctx, 0, "query", Options{})
		require.Error(t, err)
		_, err = svc.Retrieve(ctx, 7, "  ", Options{})
		require.Error(t, err)
	})
}

func TestNewService(t *testing.T) {
	t.Run("Should require all collaborators", func(t *testing.T) {
		cfg := config.Default().Embedder
		cfg.Dimension = testDimension
		adapter, err := embedder.Wrap(&cfg, axisEmbedder{})
		require.NoError(t, err)
		store := vectordb.NewMemoryStore(testDimension, 50)

		_, err = NewService(nil, store, rerank.NewWithProviders(), nil)
		require.Error(t, err)
		_, err = NewService(adapter, nil, rerank.NewWithProviders(), nil)
		require.Error(t, err)
		_, err = NewService(adapter, store, nil, nil)
		require.Error(t, err)
	})
}
