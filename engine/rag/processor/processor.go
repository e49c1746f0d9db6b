// Package processor orchestrates one document's journey from raw bytes to
// stamped chunks: extraction, cleaning, chunking, metadata stamping. It has
// no persistence side effects; indexing is the caller's concern.
package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/bidcraft/bidcraft/engine/rag/chunk"
	"github.com/bidcraft/bidcraft/engine/rag/extract"
	"github.com/bidcraft/bidcraft/pkg/config"
	"github.com/bidcraft/bidcraft/pkg/logger"
)

// Metadata keys stamped on every chunk so each one is self-describing
// without rejoining its parent document.
const (
	MetaChunkIndex    = "chunk_index"
	MetaTotalChunks   = "total_chunks"
	MetaProjectID     = "project_id"
	MetaRFPDocumentID = "rfp_document_id"
	MetaFileType      = "file_type"
	MetaPageCount     = "page_count"
	MetaStructured    = "structured_data"
)

// Config selects the chunking strategy and its parameters.
type Config struct {
	Strategy string
	Settings chunk.Settings
}

// ConfigFrom maps the application chunking config onto processor config.
func ConfigFrom(cfg *config.ChunkingConfig) Config {
	return Config{
		Strategy: cfg.Strategy,
		Settings: chunk.Settings{
			Size:              cfg.Size,
			Overlap:           cfg.Overlap,
			Separator:         cfg.Separator,
			SemanticThreshold: cfg.SemanticThreshold,
			SemanticMinTokens: cfg.SemanticMinTokens,
			SemanticMaxTokens: cfg.SemanticMaxTokens,
			ParentSize:        cfg.HierarchyParentSize,
			ChildSize:         cfg.HierarchyChildSize,
		},
	}
}

// Result is the outcome of processing a single document.
type Result struct {
	Success    bool
	Document   *chunk.Document
	Chunks     []chunk.Chunk
	Extraction *extract.Result
	ChunkCount int
	Error      string
}

// Processor runs extraction, cleaning, chunking and stamping for one
// document at a time. Safe for concurrent use: it holds no per-call state.
type Processor struct {
	extractor      extract.Extractor
	strategy       chunk.Strategy
	activeStrategy string
}

// New builds a processor with the requested strategy. When the requested
// strategy cannot be constructed the processor substitutes fixed and keeps
// serving; ActiveStrategy reports which one is live.
func New(cfg Config, extractor extract.Extractor, deps chunk.Deps) (*Processor, error) {
	if extractor == nil {
		return nil, fmt.Errorf("processor: extractor is required")
	}
	strategy, err := chunk.New(cfg.Strategy, cfg.Settings, deps)
	if err != nil {
		fixed, fixedErr := chunk.New(chunk.StrategyFixed, cfg.Settings, deps)
		if fixedErr != nil {
			// Settings themselves are invalid; nothing to fall back to.
			return nil, fixedErr
		}
		logger.Default().Warn(
			"chunking strategy unavailable, using fixed",
			"requested", cfg.Strategy,
			"error", err,
		)
		strategy = fixed
	}
	return &Processor{
		extractor:      extractor,
		strategy:       strategy,
		activeStrategy: strategy.Name(),
	}, nil
}

// ActiveStrategy reports the strategy actually serving requests, which may
// be fixed when the configured one failed to construct.
func (p *Processor) ActiveStrategy() string {
	return p.activeStrategy
}

// ProcessFile extracts, cleans, chunks and stamps one document. Failures
// are reported through Result, never raised: extraction failure or empty
// cleaned text fail closed, while a document that cleanly yields zero
// chunks succeeds with ChunkCount 0.
func (p *Processor) ProcessFile(
	ctx context.Context,
	data []byte,
	fileType extract.FileType,
	projectID int,
	rfpDocumentID int,
) *Result {
	log := logger.FromContext(ctx).With(
		"project_id", projectID,
		"rfp_document_id", rfpDocumentID,
		"strategy", p.activeStrategy,
	)
	extraction := p.extractor.Extract(ctx, data, fileType)
	if !extraction.Success {
		return &Result{Success: false, Extraction: extraction, Error: extraction.Error}
	}
	text := chunk.CleanText(extraction.Text)
	if text == "" {
		return &Result{
			Success:    false,
			Extraction: extraction,
			Error:      "document contains no text after cleaning",
		}
	}
	doc := buildDocument(text, extraction, projectID, rfpDocumentID, fileType)
	chunks := p.strategy.Chunk(ctx, *doc)
	stampChunks(chunks, doc.Metadata)
	log.Info("document processed", "chunks", len(chunks), "pages", extraction.PageCount)
	return &Result{
		Success:    true,
		Document:   doc,
		Chunks:     chunks,
		Extraction: extraction,
		ChunkCount: len(chunks),
	}
}

// buildDocument merges extraction metadata with pipeline identifiers into
// an immutable document value.
func buildDocument(
	text string,
	extraction *extract.Result,
	projectID int,
	rfpDocumentID int,
	fileType extract.FileType,
) *chunk.Document {
	metadata := make(map[string]any, len(extraction.Metadata)+4)
	for k, v := range extraction.Metadata {
		metadata[k] = v
	}
	metadata[MetaProjectID] = projectID
	metadata[MetaRFPDocumentID] = rfpDocumentID
	metadata[MetaFileType] = string(fileType)
	if extraction.PageCount > 0 {
		metadata[MetaPageCount] = extraction.PageCount
	}
	if len(extraction.StructuredData) > 0 {
		metadata[MetaStructured] = extraction.StructuredData
	}
	return &chunk.Document{Text: text, Metadata: metadata}
}

// stampChunks writes positional and source metadata onto every chunk.
// chunk_index values are contiguous 0..total-1 in emission order.
func stampChunks(chunks []chunk.Chunk, docMeta map[string]any) {
	total := len(chunks)
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any, len(docMeta)+2)
		}
		for k, v := range docMeta {
			if _, exists := chunks[i].Metadata[k]; !exists {
				chunks[i].Metadata[k] = v
			}
		}
		chunks[i].Metadata[MetaChunkIndex] = i
		chunks[i].Metadata[MetaTotalChunks] = total
	}
}

// NormalizeFileType maps loose caller input onto the supported enum.
func NormalizeFileType(s string) (extract.FileType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return extract.FileTypePDF, nil
	case "docx", "doc":
		return extract.FileTypeDOCX, nil
	default:
		return "", fmt.Errorf("processor: unsupported file type %q", s)
	}
}
