// Package rag wires the document pipeline end to end: ingestion (extract,
// chunk, embed, index), retrieval (search, rerank) and the cached query and
// chat operations built on top.
package rag

import "github.com/bidcraft/bidcraft/engine/rag/extract"

// IngestRequest carries one document into the pipeline.
type IngestRequest struct {
	Data          []byte
	FileType      extract.FileType
	ProjectID     int
	RFPDocumentID int
}

// IngestResult reports what one successful ingestion produced.
type IngestResult struct {
	ProjectID     int    `json:"project_id"`
	RFPDocumentID int    `json:"rfp_document_id"`
	Chunks        int    `json:"chunks"`
	Persisted     int    `json:"persisted"`
	Strategy      string `json:"strategy"`
}

// BatchResult aggregates a multi-document ingestion. Failures are isolated
// per document: one bad file never blocks its siblings.
type BatchResult struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []*IngestResult `json:"results"`
	Errors    map[int]string  `json:"errors,omitempty"`
}

// Source is one retrieved passage attributed in a response. RerankScore is
// omitted when ordering fell back to plain vector similarity.
type Source struct {
	Text        string         `json:"text"`
	Score       float64        `json:"score"`
	RerankScore *float64       `json:"rerank_score,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// QueryRequest asks for the passages most relevant to a question within
// one project.
type QueryRequest struct {
	ProjectID int
	Query     string
	TopK      int
	MinScore  float64
}

// QueryResponse carries ranked sources. Cached reports whether the response
// was served from the cache rather than computed.
type QueryResponse struct {
	Query     string   `json:"query"`
	ProjectID int      `json:"project_id"`
	Sources   []Source `json:"sources"`
	Cached    bool     `json:"cached"`
}

// Turn is one prior message in a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatRequest asks for a grounded answer. History holds prior conversation
// turns oldest first.
type ChatRequest struct {
	ProjectID int
	Query     string
	History   []Turn
	TopK      int
}

// ChatResponse carries the generated answer with its supporting sources.
// ContextUsed is the estimated token count of retrieved context that went
// into the prompt.
type ChatResponse struct {
	Answer      string   `json:"answer"`
	ProjectID   int      `json:"project_id"`
	Sources     []Source `json:"sources"`
	ContextUsed int      `json:"context_used"`
	Cached      bool     `json:"cached"`
}

// Stats summarizes what the index holds for a project.
type Stats struct {
	ProjectID int `json:"project_id"`
	Chunks    int `json:"chunks"`
}
