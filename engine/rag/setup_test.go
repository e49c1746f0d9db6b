package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidcraft/bidcraft/pkg/config"
)

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("Should build the pipeline from config without external services", func(t *testing.T) {
		cfg := config.Default()
		cfg.Embedder.Provider = "ollama"
		cfg.Embedder.Model = "nomic-embed-text"
		cfg.LLM.Provider = "ollama"
		cfg.LLM.Model = "llama3"
		cfg.Cache.Enabled = false
		cfg.VectorDB.Provider = "memory"

		svc, cleanup, err := Setup(ctx, cfg)
		require.NoError(t, err)
		require.NotNil(t, svc)
		t.Cleanup(cleanup)

		stats, err := svc.ProjectStats(ctx, 7)
		require.NoError(t, err)
		assert.Zero(t, stats.Chunks)
	})

	t.Run("Should require a config", func(t *testing.T) {
		_, _, err := Setup(ctx, nil)
		require.Error(t, err)
	})

	t.Run("Should propagate vector store configuration errors", func(t *testing.T) {
		cfg := config.Default()
		cfg.Embedder.Provider = "ollama"
		cfg.VectorDB.Provider = "pgvector"
		cfg.VectorDB.DSN = ""

		_, _, err := Setup(ctx, cfg)
		require.Error(t, err)
	})
}
