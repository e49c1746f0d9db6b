package rag

import (
	"context"
	"fmt"

	"github.com/bidcraft/bidcraft/engine/infra/cache"
	"github.com/bidcraft/bidcraft/engine/llm"
	"github.com/bidcraft/bidcraft/engine/rag/chunk"
	"github.com/bidcraft/bidcraft/engine/rag/embedder"
	"github.com/bidcraft/bidcraft/engine/rag/extract"
	"github.com/bidcraft/bidcraft/engine/rag/processor"
	"github.com/bidcraft/bidcraft/engine/rag/vectordb"
	"github.com/bidcraft/bidcraft/pkg/config"
	"github.com/bidcraft/bidcraft/pkg/logger"
)

// Setup builds the whole pipeline from config: embedder, vector store,
// extractor, processor, redis cache and completion client. The returned
// cleanup releases connections and is safe to call once.
//
// An unreachable redis is not fatal: the cache starts unavailable and the
// pipeline serves uncached. A completion client that cannot be built only
// disables chat and structured extraction.
func Setup(ctx context.Context, cfg *config.Config) (*Service, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("rag: config is required")
	}
	log := logger.FromContext(ctx)

	emb, err := embedder.New(&cfg.Embedder)
	if err != nil {
		return nil, nil, err
	}
	store, err := vectordb.New(ctx, &vectordb.Config{
		Provider:    vectordb.Provider(cfg.VectorDB.Provider),
		DSN:         cfg.VectorDB.DSN,
		Table:       cfg.VectorDB.Table,
		EnsureIndex: cfg.VectorDB.EnsureIndex,
		Metric:      cfg.VectorDB.Metric,
		Dimension:   cfg.Embedder.Dimension,
		MaxTopK:     cfg.VectorDB.MaxTopK,
	})
	if err != nil {
		return nil, nil, err
	}

	completion, err := llm.New(&cfg.LLM)
	if err != nil {
		log.Warn("completion client unavailable, chat and structured extraction disabled", "error", err)
		completion = nil
	}

	proc, err := processor.New(
		processor.ConfigFrom(&cfg.Chunking),
		extract.NewService(completion),
		chunk.Deps{Embedder: emb},
	)
	if err != nil {
		closeStore(ctx, store)
		return nil, nil, err
	}

	var redisConn *cache.Redis
	var client cache.RedisInterface
	if cfg.Cache.Enabled {
		redisConn, err = cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			log.Warn("redis unreachable, serving without cache", "error", err)
		} else {
			client = redisConn
		}
	}
	ragCache := cache.NewRAGCache(cache.NewManager(client, &cfg.Cache), &cfg.Cache)
	emb.UseSharedCache(ragCache)

	svc, err := NewService(cfg, Deps{
		Processor:  proc,
		Embedder:   emb,
		Store:      store,
		Cache:      ragCache,
		Completion: completion,
	})
	if err != nil {
		closeStore(ctx, store)
		if redisConn != nil {
			redisConn.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		closeStore(context.Background(), store)
		if redisConn != nil {
			redisConn.Close()
		}
	}
	return svc, cleanup, nil
}

func closeStore(ctx context.Context, store vectordb.Store) {
	if err := store.Close(ctx); err != nil {
		logger.FromContext(ctx).Warn("vector store close failed", "error", err)
	}
}
