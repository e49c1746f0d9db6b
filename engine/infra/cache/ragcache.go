package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/bidcraft/bidcraft/pkg/config"
)

// Key namespaces. Every key the pipeline writes starts with "rag:" so
// invalidation patterns never touch foreign keyspaces.
const (
	nsQuery     = "rag:query"
	nsChat      = "rag:chat"
	nsEmbedding = "rag:embedding"
	nsExtract   = "rag:extract"
)

// RAGCache layers the domain key scheme and per-scope TTLs over Manager.
// Query and chat keys carry a project suffix, extraction keys a project and
// document suffix, so whole scopes can be invalidated by pattern.
type RAGCache struct {
	manager *Manager
	cfg     *config.CacheConfig
}

// NewRAGCache builds the domain cache over an existing manager.
func NewRAGCache(manager *Manager, cfg *config.CacheConfig) *RAGCache {
	if cfg == nil {
		def := config.Default().Cache
		cfg = &def
	}
	return &RAGCache{manager: manager, cfg: cfg}
}

// Manager exposes the underlying manager for availability checks.
func (c *RAGCache) Manager() *Manager {
	return c.manager
}

// QueryKey identifies one query result: the digest binds the query text to
// its project, topK distinguishes result depths, and the project suffix
// makes the key reachable by project-wide invalidation.
func (c *RAGCache) QueryKey(query string, projectID, topK int) string {
	digest := HashText(fmt.Sprintf("%s:%d", query, projectID))
	return fmt.Sprintf("%s:%s:topk:%d:project:%d", nsQuery, digest, topK, projectID)
}

// ChatKey identifies one chat answer: same query digest as QueryKey plus a
// digest of the conversation history, so the same question in a different
// conversation caches separately.
func (c *RAGCache) ChatKey(query string, projectID int, history []string) string {
	digest := HashText(fmt.Sprintf("%s:%d", query, projectID))
	conv := HashText(strings.Join(history, "\n"))
	return fmt.Sprintf("%s:%s:conv:%s:project:%d", nsChat, digest, conv, projectID)
}

// EmbeddingKey identifies one text's embedding. Embeddings are project
// independent, so the key carries no project suffix and survives project
// invalidation.
func (c *RAGCache) EmbeddingKey(text string) string {
	return fmt.Sprintf("%s:%s", nsEmbedding, HashText(text))
}

// ExtractKey identifies one document's extraction result, scoped to both
// project and document for targeted invalidation.
func (c *RAGCache) ExtractKey(content []byte, projectID, documentID int) string {
	return fmt.Sprintf("%s:%s:project:%d:doc:%d", nsExtract, HashText(string(content)), projectID, documentID)
}

// GetQuery / SetQuery cache serialized query responses.
func (c *RAGCache) GetQuery(ctx context.Context, key string, dest any) bool {
	return c.manager.Get(ctx, key, dest)
}

func (c *RAGCache) SetQuery(ctx context.Context, key string, value any) bool {
	return c.manager.Set(ctx, key, value, c.cfg.QueryTTL)
}

// GetChat / SetChat cache chat answers.
func (c *RAGCache) GetChat(ctx context.Context, key string, dest any) bool {
	return c.manager.Get(ctx, key, dest)
}

func (c *RAGCache) SetChat(ctx context.Context, key string, value any) bool {
	return c.manager.Set(ctx, key, value, c.cfg.ChatTTL)
}

// GetEmbedding / SetEmbedding cache embedding vectors.
func (c *RAGCache) GetEmbedding(ctx context.Context, text string) ([]float32, bool) {
	var vector []float32
	if c.manager.Get(ctx, c.EmbeddingKey(text), &vector) {
		return vector, true
	}
	return nil, false
}

func (c *RAGCache) SetEmbedding(ctx context.Context, text string, vector []float32) bool {
	return c.manager.Set(ctx, c.EmbeddingKey(text), vector, c.cfg.EmbeddingTTL)
}

// GetExtraction / SetExtraction cache extraction results.
func (c *RAGCache) GetExtraction(ctx context.Context, key string, dest any) bool {
	return c.manager.Get(ctx, key, dest)
}

func (c *RAGCache) SetExtraction(ctx context.Context, key string, value any) bool {
	return c.manager.Set(ctx, key, value, c.cfg.ExtractTTL)
}

// InvalidateProject drops every project-scoped entry: queries, chats and
// extractions carrying the project suffix. Embeddings are untouched. Two
// patterns are needed because a bare "project:7*" glob would also match
// project 70; the first matches keys ending at the id, the second matches
// keys with further colon-delimited segments after it.
func (c *RAGCache) InvalidateProject(ctx context.Context, projectID int) int {
	n := c.manager.DeletePattern(ctx, fmt.Sprintf("rag:*:project:%d", projectID))
	n += c.manager.DeletePattern(ctx, fmt.Sprintf("rag:*:project:%d:*", projectID))
	return n
}

// InvalidateDocument drops entries scoped to one document within a project.
func (c *RAGCache) InvalidateDocument(ctx context.Context, projectID, documentID int) int {
	n := c.manager.DeletePattern(ctx, fmt.Sprintf("rag:*:project:%d:doc:%d", projectID, documentID))
	n += c.manager.DeletePattern(ctx, fmt.Sprintf("rag:*:project:%d:doc:%d:*", projectID, documentID))
	return n
}
