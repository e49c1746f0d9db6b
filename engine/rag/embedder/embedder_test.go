package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidcraft/bidcraft/pkg/config"
)

type fakeEmbedder struct {
	dimension int
	calls     int
	texts     [][]string
	fail      bool
}

func (f *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, f.dimension)
	for i, r := range text {
		v[i%f.dimension] += float32(r)
	}
	return v
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.texts = append(f.texts, texts)
	if f.fail {
		return nil, errors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("provider unavailable")
	}
	return f.vector(text), nil
}

type fakeSharedCache struct {
	store map[string][]float32
	gets  int
	sets  int
}

func newFakeSharedCache() *fakeSharedCache {
	return &fakeSharedCache{store: map[string][]float32{}}
}

func (f *fakeSharedCache) GetEmbedding(_ context.Context, text string) ([]float32, bool) {
	f.gets++
	v, ok := f.store[text]
	return v, ok
}

func (f *fakeSharedCache) SetEmbedding(_ context.Context, text string, vector []float32) bool {
	f.sets++
	f.store[text] = vector
	return true
}

func testConfig() *config.EmbedderConfig {
	return &config.EmbedderConfig{
		Provider:  "openai",
		Model:     "test-model",
		Dimension: 4,
		BatchSize: 8,
		CacheSize: 16,
	}
}

func TestWrap(t *testing.T) {
	t.Run("Should reject missing implementation", func(t *testing.T) {
		_, err := Wrap(testConfig(), nil)
		require.Error(t, err)
	})

	t.Run("Should reject invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Dimension = 0
		_, err := Wrap(cfg, &fakeEmbedder{dimension: 4})
		require.Error(t, err)
	})

	t.Run("Should expose dimension and batch size", func(t *testing.T) {
		a, err := Wrap(testConfig(), &fakeEmbedder{dimension: 4})
		require.NoError(t, err)
		assert.Equal(t, 4, a.Dimension())
		assert.Equal(t, 8, a.BatchSize())
	})
}

func TestEmbedDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("Should embed texts in input order", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4}
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)

		vectors, err := a.EmbedDocuments(ctx, []string{"alpha", "beta"})
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Equal(t, fake.vector("alpha"), vectors[0])
		assert.Equal(t, fake.vector("beta"), vectors[1])
	})

	t.Run("Should serve repeated texts from cache", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4}
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)

		_, err = a.EmbedDocuments(ctx, []string{"alpha", "beta"})
		require.NoError(t, err)
		require.Equal(t, 1, fake.calls)

		vectors, err := a.EmbedDocuments(ctx, []string{"alpha", "gamma", "beta"})
		require.NoError(t, err)
		assert.Equal(t, 2, fake.calls)
		require.Len(t, fake.texts, 2)
		assert.Equal(t, []string{"gamma"}, fake.texts[1])
		assert.Equal(t, fake.vector("alpha"), vectors[0])
		assert.Equal(t, fake.vector("gamma"), vectors[1])
	})

	t.Run("Should deduplicate identical texts within one call", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4}
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)

		vectors, err := a.EmbedDocuments(ctx, []string{"same", "same", "same"})
		require.NoError(t, err)
		require.Len(t, fake.texts, 1)
		assert.Len(t, fake.texts[0], 1)
		assert.Equal(t, vectors[0], vectors[1])
		assert.Equal(t, vectors[1], vectors[2])
	})

	t.Run("Should reject vectors with the wrong dimension", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 3}
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)

		_, err = a.EmbedDocuments(ctx, []string{"alpha"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension")
	})

	t.Run("Should wrap provider errors with adapter identity", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4, fail: true}
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)

		_, err = a.EmbedDocuments(ctx, []string{"alpha"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "openai/test-model")
	})

	t.Run("Should write computed embeddings to the shared cache", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4}
		shared := newFakeSharedCache()
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)
		a.UseSharedCache(shared)

		_, err = a.EmbedDocuments(ctx, []string{"alpha", "beta"})
		require.NoError(t, err)
		assert.Equal(t, 2, shared.sets)
		assert.Equal(t, fake.vector("alpha"), shared.store["alpha"])
	})

	t.Run("Should serve shared-cache hits without calling the provider", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4}
		shared := newFakeSharedCache()
		shared.store["alpha"] = fake.vector("alpha")
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)
		a.UseSharedCache(shared)

		vectors, err := a.EmbedDocuments(ctx, []string{"alpha"})
		require.NoError(t, err)
		assert.Equal(t, fake.vector("alpha"), vectors[0])
		assert.Zero(t, fake.calls)

		// The hit warmed the LRU, so the next lookup skips both layers.
		_, err = a.EmbedDocuments(ctx, []string{"alpha"})
		require.NoError(t, err)
		assert.Equal(t, 1, shared.gets)
	})

	t.Run("Should ignore shared vectors with a stale dimension", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4}
		shared := newFakeSharedCache()
		shared.store["alpha"] = []float32{1, 2}
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)
		a.UseSharedCache(shared)

		vectors, err := a.EmbedDocuments(ctx, []string{"alpha"})
		require.NoError(t, err)
		assert.Equal(t, fake.vector("alpha"), vectors[0])
		assert.Equal(t, 1, fake.calls)
	})

	t.Run("Should return nil for empty input", func(t *testing.T) {
		a, err := Wrap(testConfig(), &fakeEmbedder{dimension: 4})
		require.NoError(t, err)
		vectors, err := a.EmbedDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, vectors)
	})
}

func TestEmbedQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("Should cache query embeddings", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4}
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)

		first, err := a.EmbedQuery(ctx, "what is the budget")
		require.NoError(t, err)
		second, err := a.EmbedQuery(ctx, "what is the budget")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, fake.calls)
	})

	t.Run("Should serve query embeddings from the shared cache", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4}
		shared := newFakeSharedCache()
		shared.store["what is the budget"] = fake.vector("what is the budget")
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)
		a.UseSharedCache(shared)

		vector, err := a.EmbedQuery(ctx, "what is the budget")
		require.NoError(t, err)
		assert.Equal(t, fake.vector("what is the budget"), vector)
		assert.Zero(t, fake.calls)
	})

	t.Run("Should hand out independent copies", func(t *testing.T) {
		fake := &fakeEmbedder{dimension: 4}
		a, err := Wrap(testConfig(), fake)
		require.NoError(t, err)

		first, err := a.EmbedQuery(ctx, "query")
		require.NoError(t, err)
		first[0] = -999
		second, err := a.EmbedQuery(ctx, "query")
		require.NoError(t, err)
		assert.NotEqual(t, first[0], second[0])
	})
}
