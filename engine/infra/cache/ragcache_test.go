package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidcraft/bidcraft/pkg/config"
)

func testRAGCache(t *testing.T) (*RAGCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cfg := config.Default().Cache
	return NewRAGCache(NewManager(client, &cfg), &cfg), mr
}

func TestRAGCacheKeys(t *testing.T) {
	t.Run("Should bind query keys to query, project and depth", func(t *testing.T) {
		c, _ := testRAGCache(t)
		base := c.QueryKey("what is the budget", 7, 5)
		assert.Contains(t, base, "rag:query:")
		assert.Contains(t, base, ":topk:5:")
		assert.Contains(t, base, ":project:7")
		assert.NotEqual(t, base, c.QueryKey("what is the budget", 8, 5))
		assert.NotEqual(t, base, c.QueryKey("what is the budget", 7, 10))
		assert.NotEqual(t, base, c.QueryKey("what is the deadline", 7, 5))
	})

	t.Run("Should separate chat keys by conversation history", func(t *testing.T) {
		c, _ := testRAGCache(t)
		a := c.ChatKey("next steps?", 7, []string{"hello", "hi"})
		b := c.ChatKey("next steps?", 7, []string{"hello", "hi", "tell me more"})
		assert.NotEqual(t, a, b)
		assert.Equal(t, a, c.ChatKey("next steps?", 7, []string{"hello", "hi"}))
	})

	t.Run("Should keep embedding keys project independent", func(t *testing.T) {
		c, _ := testRAGCache(t)
		key := c.EmbeddingKey("some passage")
		assert.Contains(t, key, "rag:embedding:")
		assert.NotContains(t, key, "project")
	})
}

func TestRAGCacheRoundTrips(t *testing.T) {
	ctx := context.Background()

	t.Run("Should round-trip embeddings", func(t *testing.T) {
		c, _ := testRAGCache(t)
		vector := []float32{0.1, 0.2, 0.3}
		require.True(t, c.SetEmbedding(ctx, "passage", vector))
		got, ok := c.GetEmbedding(ctx, "passage")
		require.True(t, ok)
		assert.Equal(t, vector, got)
	})

	t.Run("Should round-trip query results", func(t *testing.T) {
		c, _ := testRAGCache(t)
		key := c.QueryKey("budget", 7, 5)
		require.True(t, c.SetQuery(ctx, key, map[string]any{"answer": "250k"}))
		var got map[string]any
		require.True(t, c.GetQuery(ctx, key, &got))
		assert.Equal(t, "250k", got["answer"])
	})
}

func TestRAGCacheInvalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("Should drop project entries but keep other projects and embeddings", func(t *testing.T) {
		c, _ := testRAGCache(t)
		require.True(t, c.SetQuery(ctx, c.QueryKey("q", 7, 5), "a7"))
		require.True(t, c.SetChat(ctx, c.ChatKey("q", 7, nil), "c7"))
		require.True(t, c.SetExtraction(ctx, c.ExtractKey([]byte("doc"), 7, 1), "e7"))
		require.True(t, c.SetQuery(ctx, c.QueryKey("q", 70, 5), "a70"))
		require.True(t, c.SetEmbedding(ctx, "passage", []float32{1}))

		deleted := c.InvalidateProject(ctx, 7)
		assert.Equal(t, 3, deleted)

		var got string
		assert.False(t, c.GetQuery(ctx, c.QueryKey("q", 7, 5), &got))
		assert.True(t, c.GetQuery(ctx, c.QueryKey("q", 70, 5), &got))
		_, ok := c.GetEmbedding(ctx, "passage")
		assert.True(t, ok)
	})

	t.Run("Should drop one document without touching its siblings", func(t *testing.T) {
		c, _ := testRAGCache(t)
		keep := c.ExtractKey([]byte("keep"), 7, 2)
		drop := c.ExtractKey([]byte("drop"), 7, 1)
		require.True(t, c.SetExtraction(ctx, keep, "keep"))
		require.True(t, c.SetExtraction(ctx, drop, "drop"))

		assert.Equal(t, 1, c.InvalidateDocument(ctx, 7, 1))
		var got string
		assert.True(t, c.GetExtraction(ctx, keep, &got))
		assert.False(t, c.GetExtraction(ctx, drop, &got))
	})
}
