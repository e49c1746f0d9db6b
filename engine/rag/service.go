package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bidcraft/bidcraft/engine/infra/cache"
	"github.com/bidcraft/bidcraft/engine/llm"
	"github.com/bidcraft/bidcraft/engine/rag/embedder"
	"github.com/bidcraft/bidcraft/engine/rag/processor"
	"github.com/bidcraft/bidcraft/engine/rag/rerank"
	"github.com/bidcraft/bidcraft/engine/rag/retriever"
	"github.com/bidcraft/bidcraft/engine/rag/sanitize"
	"github.com/bidcraft/bidcraft/engine/rag/vectordb"
	"github.com/bidcraft/bidcraft/pkg/config"
	"github.com/bidcraft/bidcraft/pkg/logger"
)

// maxContextTokens bounds how much retrieved text reaches the chat prompt.
const maxContextTokens = 3000

// Deps carries every collaborator the service needs. All dependencies are
// injected; the service owns no global state. Reranker and Estimator are
// optional and default from config.
type Deps struct {
	Processor  *processor.Processor
	Embedder   *embedder.Adapter
	Store      vectordb.Store
	Reranker   *rerank.Reranker
	Cache      *cache.RAGCache
	Completion llm.Client
	Estimator  retriever.TokenEstimator
}

// Service is the pipeline facade: ingestion, retrieval, query and chat.
type Service struct {
	cfg       *config.Config
	processor *processor.Processor
	embedder  *embedder.Adapter
	store     vectordb.Store
	retriever *retriever.Service
	cache     *cache.RAGCache
	llm       llm.Client
	retry     retrySettings
}

// NewService validates and wires the facade.
func NewService(cfg *config.Config, deps Deps) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("rag: config is required")
	}
	if deps.Processor == nil {
		return nil, errors.New("rag: processor is required")
	}
	if deps.Embedder == nil {
		return nil, errors.New("rag: embedder is required")
	}
	if deps.Store == nil {
		return nil, errors.New("rag: vector store is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("rag: cache is required")
	}
	reranker := deps.Reranker
	if reranker == nil {
		reranker = rerank.New(&cfg.Rerank)
	}
	ret, err := retriever.NewService(deps.Embedder, deps.Store, reranker, deps.Estimator)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		processor: deps.Processor,
		embedder:  deps.Embedder,
		store:     deps.Store,
		retriever: ret,
		cache:     deps.Cache,
		llm:       deps.Completion,
		retry:     defaultRetry(),
	}, nil
}

// IngestDocument runs one document through extraction, chunking, embedding
// and indexing. Existing records for the same document are replaced, and
// the document's cache scope is invalidated so stale answers disappear.
func (s *Service) IngestDocument(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := validateIngest(req); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With(
		"project_id", req.ProjectID,
		"rfp_document_id", req.RFPDocumentID,
	)
	result := s.processor.ProcessFile(ctx, req.Data, req.FileType, req.ProjectID, req.RFPDocumentID)
	if !result.Success {
		return nil, fmt.Errorf("rag: process document %d: %s", req.RFPDocumentID, result.Error)
	}
	if err := s.store.Delete(ctx, documentFilter(req.ProjectID, req.RFPDocumentID)); err != nil {
		return nil, fmt.Errorf("rag: replace document %d: %w", req.RFPDocumentID, err)
	}
	persisted, err := s.persistChunks(ctx, result.Chunks)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDocument(ctx, req.ProjectID, req.RFPDocumentID)
	s.cache.InvalidateProject(ctx, req.ProjectID)
	log.Info("document ingested", "chunks", result.ChunkCount, "persisted", persisted)
	return &IngestResult{
		ProjectID:     req.ProjectID,
		RFPDocumentID: req.RFPDocumentID,
		Chunks:        result.ChunkCount,
		Persisted:     persisted,
		Strategy:      s.processor.ActiveStrategy(),
	}, nil
}

// IngestBatch ingests several documents, isolating failures per document.
func (s *Service) IngestBatch(ctx context.Context, reqs []IngestRequest) *BatchResult {
	batch := &BatchResult{}
	for _, req := range reqs {
		result, err := s.IngestDocument(ctx, req)
		if err != nil {
			batch.Failed++
			if batch.Errors == nil {
				batch.Errors = make(map[int]string)
			}
			batch.Errors[req.RFPDocumentID] = err.Error()
			continue
		}
		batch.Succeeded++
		batch.Results = append(batch.Results, result)
	}
	return batch
}

// Query returns the reranked passages most relevant to the question within
// one project. Identical questions are served from the cache until the
// project's documents change.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if err := validateQuery(req.ProjectID, req.Query); err != nil {
		return nil, err
	}
	topK := s.clampTopK(req.TopK)
	key := s.cache.QueryKey(req.Query, req.ProjectID, topK)
	var cached QueryResponse
	if s.cache.GetQuery(ctx, key, &cached) {
		cached.Cached = true
		return &cached, nil
	}
	retrieved, err := s.retriever.Retrieve(ctx, req.ProjectID, req.Query, retriever.Options{
		TopK:     topK,
		MinScore: req.MinScore,
	})
	if err != nil {
		return nil, err
	}
	resp := &QueryResponse{
		Query:     req.Query,
		ProjectID: req.ProjectID,
		Sources:   toSources(retrieved),
	}
	s.cache.SetQuery(ctx, key, resp)
	return resp, nil
}

// Chat answers a question grounded in the project's documents. The answer
// and its sources pass through PII sanitization before leaving the service.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := validateQuery(req.ProjectID, req.Query); err != nil {
		return nil, err
	}
	if s.llm == nil {
		return nil, errors.New("rag: chat requires a completion client")
	}
	topK := s.clampTopK(req.TopK)
	key := s.cache.ChatKey(req.Query, req.ProjectID, historyLines(req.History))
	var cached ChatResponse
	if s.cache.GetChat(ctx, key, &cached) {
		cached.Cached = true
		return &cached, nil
	}
	retrieved, err := s.retriever.Retrieve(ctx, req.ProjectID, req.Query, retriever.Options{
		TopK:      topK,
		MaxTokens: maxContextTokens,
	})
	if err != nil {
		return nil, err
	}
	prompt := buildChatPrompt(req.Query, req.History, retrieved)
	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rag: generate answer: %w", err)
	}
	contextUsed := 0
	for _, r := range retrieved {
		contextUsed += r.TokenEstimate
	}
	resp := &ChatResponse{
		Answer:      sanitize.Text(answer),
		ProjectID:   req.ProjectID,
		Sources:     toSources(retrieved),
		ContextUsed: contextUsed,
	}
	s.cache.SetChat(ctx, key, resp)
	return resp, nil
}

// DeleteDocument removes a document's records and cached entries.
func (s *Service) DeleteDocument(ctx context.Context, projectID, rfpDocumentID int) error {
	if err := s.store.Delete(ctx, documentFilter(projectID, rfpDocumentID)); err != nil {
		return fmt.Errorf("rag: delete document %d: %w", rfpDocumentID, err)
	}
	s.cache.InvalidateDocument(ctx, projectID, rfpDocumentID)
	s.cache.InvalidateProject(ctx, projectID)
	return nil
}

// DeleteProject removes every record and cached entry for a project.
func (s *Service) DeleteProject(ctx context.Context, projectID int) error {
	if err := s.store.Delete(ctx, vectordb.Filter{Metadata: projectFilter(projectID)}); err != nil {
		return fmt.Errorf("rag: delete project %d: %w", projectID, err)
	}
	s.cache.InvalidateProject(ctx, projectID)
	return nil
}

// ProjectStats reports how many chunks a project has in the index.
func (s *Service) ProjectStats(ctx context.Context, projectID int) (*Stats, error) {
	n, err := s.store.Count(ctx, projectFilter(projectID))
	if err != nil {
		return nil, fmt.Errorf("rag: project stats: %w", err)
	}
	return &Stats{ProjectID: projectID, Chunks: n}, nil
}

func (s *Service) clampTopK(topK int) int {
	if topK <= 0 {
		topK = 5
	}
	if topK > s.cfg.VectorDB.MaxTopK {
		return s.cfg.VectorDB.MaxTopK
	}
	return topK
}

// toSources converts retrieved passages to response sources, masking PII
// in the outbound text.
func toSources(retrieved []retriever.Retrieved) []Source {
	sources := make([]Source, len(retrieved))
	for i, r := range retrieved {
		sources[i] = Source{
			Text:        sanitize.Text(r.Text),
			Score:       r.Score,
			RerankScore: r.RerankScore,
			Metadata:    r.Metadata,
		}
	}
	return sources
}

// historyLines renders turns as "role: text" lines. The rendering doubles
// as the cache key material: identical turn sequences always produce the
// same lines, so ChatKey stays deterministic.
func historyLines(history []Turn) []string {
	if len(history) == 0 {
		return nil
	}
	lines := make([]string, len(history))
	for i, turn := range history {
		lines[i] = fmt.Sprintf("%s: %s", turn.Role, turn.Text)
	}
	return lines
}

// buildChatPrompt assembles context passages, prior turns and the question.
func buildChatPrompt(query string, history []Turn, retrieved []retriever.Retrieved) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\nContext:\n")
	for i, r := range retrieved {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r.Text)
	}
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, line := range historyLines(history) {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String()
}

func validateIngest(req IngestRequest) error {
	if len(req.Data) == 0 {
		return errors.New("rag: document data is required")
	}
	if req.ProjectID <= 0 {
		return errors.New("rag: project id is required")
	}
	if req.RFPDocumentID <= 0 {
		return errors.New("rag: rfp document id is required")
	}
	return nil
}

func validateQuery(projectID int, query string) error {
	if projectID <= 0 {
		return errors.New("rag: project id is required")
	}
	if strings.TrimSpace(query) == "" {
		return errors.New("rag: query is required")
	}
	return nil
}
