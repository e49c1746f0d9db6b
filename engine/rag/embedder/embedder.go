// Package embedder adapts langchaingo embedding providers behind a single
// type with an in-process LRU cache and dimension enforcement.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/bidcraft/bidcraft/pkg/config"
	"github.com/bidcraft/bidcraft/pkg/logger"
)

// SharedCache is a cross-process embedding cache keyed by text content,
// typically Redis-backed. Implementations never error; a miss and a backend
// failure look the same to the adapter.
type SharedCache interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, bool)
	SetEmbedding(ctx context.Context, text string, vector []float32) bool
}

// Adapter wraps a langchaingo embedder and augments error reporting. All
// vectors handed out are clones, so callers can mutate them freely.
// Lookups go LRU first, then the shared cache, then the provider; computed
// vectors are written back to both caches.
type Adapter struct {
	provider  string
	model     string
	dimension int
	batchSize int
	impl      embeddings.Embedder
	cacheMu   sync.Mutex
	cache     *lru.Cache[string, []float32]
	shared    SharedCache
}

var (
	errMissingModel     = errors.New("embedder model is required")
	errInvalidDimension = errors.New("embedder dimension must be greater than zero")
	errInvalidBatchSize = errors.New("embedder batch size must be greater than zero")
)

// New constructs a provider-backed adapter from config.
func New(cfg *config.EmbedderConfig) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	impl, err := buildProviderEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return newAdapter(cfg, impl)
}

// Wrap constructs an adapter around an existing langchaingo embedder,
// used by tests and by callers that manage provider clients themselves.
func Wrap(cfg *config.EmbedderConfig, impl embeddings.Embedder) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if impl == nil {
		return nil, errors.New("embedder implementation is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return newAdapter(cfg, impl)
}

func newAdapter(cfg *config.EmbedderConfig, impl embeddings.Embedder) (*Adapter, error) {
	a := &Adapter{
		provider:  cfg.Provider,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		impl:      impl,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, a.withContext(fmt.Errorf("init cache: %w", err))
		}
		a.cache = cache
	}
	return a, nil
}

// UseSharedCache attaches a cross-process embedding cache. Call it during
// wiring, before the adapter serves traffic.
func (a *Adapter) UseSharedCache(shared SharedCache) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	a.shared = shared
}

// Dimension returns the configured vector dimension.
func (a *Adapter) Dimension() int {
	return a.dimension
}

// BatchSize returns the configured batch size.
func (a *Adapter) BatchSize() int {
	return a.batchSize
}

// EmbedDocuments embeds texts, serving repeats from the LRU cache and
// batching only the texts the cache misses.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	missingIdx := make(map[string][]int)
	for i, text := range texts {
		if vector, ok := a.lookupCache(text); ok {
			results[i] = vector
			continue
		}
		if vector, ok := a.lookupShared(ctx, text); ok {
			results[i] = vector
			continue
		}
		missingIdx[text] = append(missingIdx[text], i)
	}
	if len(missingIdx) == 0 {
		return results, nil
	}
	missing := make([]string, 0, len(missingIdx))
	for text := range missingIdx {
		missing = append(missing, text)
	}
	embedded, err := a.impl.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, a.withContext(err)
	}
	if len(embedded) != len(missing) {
		return nil, a.withContext(fmt.Errorf("received %d embeddings for %d texts", len(embedded), len(missing)))
	}
	for i, vector := range embedded {
		if err := a.checkDimension(vector); err != nil {
			return nil, err
		}
		for _, idx := range missingIdx[missing[i]] {
			results[idx] = cloneVector(vector)
		}
		a.storeCache(missing[i], vector)
		a.storeShared(ctx, missing[i], vector)
	}
	logger.FromContext(ctx).Debug(
		"embedded documents",
		"provider", a.provider,
		"model", a.model,
		"total", len(texts),
		"computed", len(missing),
	)
	return results, nil
}

// EmbedQuery embeds a single text through the same caches.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := a.lookupCache(text); ok {
		return vector, nil
	}
	if vector, ok := a.lookupShared(ctx, text); ok {
		return vector, nil
	}
	vector, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, a.withContext(err)
	}
	if err := a.checkDimension(vector); err != nil {
		return nil, err
	}
	a.storeCache(text, vector)
	a.storeShared(ctx, text, vector)
	return cloneVector(vector), nil
}

func (a *Adapter) checkDimension(vector []float32) error {
	if len(vector) != a.dimension {
		return a.withContext(fmt.Errorf("provider returned dimension %d, expected %d", len(vector), a.dimension))
	}
	return nil
}

func (a *Adapter) lookupCache(text string) ([]float32, bool) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if a.cache == nil {
		return nil, false
	}
	value, ok := a.cache.Get(cacheKey(text))
	if !ok {
		return nil, false
	}
	return cloneVector(value), true
}

// lookupShared consults the cross-process cache, warming the LRU on a hit.
// Vectors whose dimension no longer matches the configuration are ignored.
func (a *Adapter) lookupShared(ctx context.Context, text string) ([]float32, bool) {
	a.cacheMu.Lock()
	shared := a.shared
	a.cacheMu.Unlock()
	if shared == nil {
		return nil, false
	}
	vector, ok := shared.GetEmbedding(ctx, text)
	if !ok || len(vector) != a.dimension {
		return nil, false
	}
	a.storeCache(text, vector)
	return cloneVector(vector), true
}

func (a *Adapter) storeShared(ctx context.Context, text string, vector []float32) {
	a.cacheMu.Lock()
	shared := a.shared
	a.cacheMu.Unlock()
	if shared != nil && len(vector) > 0 {
		shared.SetEmbedding(ctx, text, vector)
	}
}

func (a *Adapter) storeCache(text string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if a.cache != nil {
		a.cache.Add(cacheKey(text), cloneVector(vector))
	}
}

func (a *Adapter) withContext(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("embedder %s/%s: %w", a.provider, a.model, err)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}

func validateConfig(cfg *config.EmbedderConfig) error {
	if strings.TrimSpace(cfg.Model) == "" {
		return errMissingModel
	}
	if cfg.Dimension <= 0 {
		return errInvalidDimension
	}
	if cfg.BatchSize <= 0 {
		return errInvalidBatchSize
	}
	return nil
}

func buildProviderEmbedder(cfg *config.EmbedderConfig) (embeddings.Embedder, error) {
	options := []embeddings.Option{
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(true),
	}
	switch cfg.Provider {
	case "openai":
		return buildOpenAIEmbedder(cfg, options...)
	case "ollama":
		return buildOllamaEmbedder(cfg, options...)
	default:
		return nil, fmt.Errorf("embedder provider %q is not supported", cfg.Provider)
	}
}

func buildOpenAIEmbedder(cfg *config.EmbedderConfig, opts ...embeddings.Option) (embeddings.Embedder, error) {
	openaiOpts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.APIKey != "" {
		openaiOpts = append(openaiOpts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(openaiOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("construct openai embedder: %w", err)
	}
	return embedder, nil
}

func buildOllamaEmbedder(cfg *config.EmbedderConfig, opts ...embeddings.Option) (embeddings.Embedder, error) {
	ollamaOpts := []ollama.Option{
		ollama.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		ollamaOpts = append(ollamaOpts, ollama.WithServerURL(cfg.BaseURL))
	}
	client, err := ollama.New(ollamaOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("construct ollama embedder: %w", err)
	}
	return embedder, nil
}
