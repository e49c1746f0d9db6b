// Package extract turns raw document bytes into plain text plus metadata.
// PDF parsing and DOCX unpacking run in-process; an optional completion
// client upgrades extraction with structured data (tables, pricing grids)
// pulled out of the text.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/bidcraft/bidcraft/engine/llm"
	"github.com/bidcraft/bidcraft/pkg/logger"
)

// FileType names a supported document format.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
)

// Method records how the text was obtained.
type Method string

const (
	MethodText   Method = "text"
	MethodVision Method = "vision"
)

// Result is the immutable outcome of one extraction. A failed extraction
// carries Success=false and a textual Error instead of returning a Go error,
// so callers gate on it without unwrapping.
type Result struct {
	Text           string
	PageCount      int
	Metadata       map[string]any
	StructuredData map[string]any
	Method         Method
	Success        bool
	Error          string
}

// Extractor is the pipeline's view of text extraction.
type Extractor interface {
	Extract(ctx context.Context, data []byte, fileType FileType) *Result
}

// Service extracts text from PDF and DOCX bytes. When a completion client is
// supplied, structured data is additionally distilled from the text; its
// failures downgrade the result to plain text, never fail it.
type Service struct {
	completion llm.Client
}

// NewService builds an extractor. completion may be nil.
func NewService(completion llm.Client) *Service {
	return &Service{completion: completion}
}

func (s *Service) Extract(ctx context.Context, data []byte, fileType FileType) *Result {
	log := logger.FromContext(ctx)
	if len(data) == 0 {
		return failure("document is empty")
	}
	var result *Result
	switch fileType {
	case FileTypePDF:
		result = extractPDF(data)
	case FileTypeDOCX:
		result = extractDOCX(data)
	default:
		return failure(fmt.Sprintf("unsupported file type %q", fileType))
	}
	if !result.Success {
		log.Warn("extraction failed", "file_type", fileType, "error", result.Error)
		return result
	}
	result.Metadata["file_type"] = string(fileType)
	if s.completion != nil {
		s.attachStructuredData(ctx, result)
	}
	log.Debug(
		"document extracted",
		"file_type", fileType,
		"pages", result.PageCount,
		"method", result.Method,
		"text_length", len(result.Text),
	)
	return result
}

func (s *Service) attachStructuredData(ctx context.Context, result *Result) {
	structured, err := distillStructuredData(ctx, s.completion, result.Text)
	if err != nil {
		logger.FromContext(ctx).Warn("structured extraction skipped", "error", err)
		return
	}
	if len(structured) == 0 {
		return
	}
	result.StructuredData = structured
	result.Method = MethodVision
}

func failure(msg string) *Result {
	return &Result{Success: false, Error: msg, Method: MethodText, Metadata: map[string]any{}}
}

func success(text string, pages int) *Result {
	return &Result{
		Text:      text,
		PageCount: pages,
		Metadata:  map[string]any{},
		Method:    MethodText,
		Success:   true,
	}
}

// hasExtractableText reports whether the decoded text carries anything
// beyond whitespace.
func hasExtractableText(text string) bool {
	return strings.TrimSpace(text) != ""
}
