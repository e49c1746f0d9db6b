package chunk

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/bidcraft/bidcraft/pkg/logger"
)

var sentenceEndPattern = regexp.MustCompile(`([.!?])\s+`)

// semanticStrategy groups sentences into chunks by embedding-similarity
// breakpoints: a new chunk starts when adjacent-sentence similarity drops
// below the threshold, subject to a token floor (no degenerate
// single-sentence chunks) and ceiling (no unbounded chunks).
type semanticStrategy struct {
	settings Settings
	embedder Embedder
}

func newSemanticStrategy(settings Settings, embedder Embedder) *semanticStrategy {
	return &semanticStrategy{settings: settings, embedder: embedder}
}

func (s *semanticStrategy) Name() string { return StrategySemantic }

func (s *semanticStrategy) Chunk(ctx context.Context, doc Document) []Chunk {
	sentences := splitSentences(doc.Text)
	if len(sentences) == 0 {
		return nil
	}
	similarities := s.adjacentSimilarities(ctx, sentences)
	return s.group(doc, sentences, similarities)
}

// adjacentSimilarities returns similarity[i] between sentence i and i+1.
// When embedding fails the similarities degrade to all-1.0, which reduces
// grouping to the token ceiling alone; chunking still succeeds.
func (s *semanticStrategy) adjacentSimilarities(ctx context.Context, sentences []string) []float64 {
	if len(sentences) < 2 {
		return nil
	}
	flat := make([]float64, len(sentences)-1)
	vectors, err := s.embedder.EmbedDocuments(ctx, sentences)
	if err != nil || len(vectors) != len(sentences) {
		logger.FromContext(ctx).Warn("semantic chunking falling back to size-only grouping", "error", err)
		for i := range flat {
			flat[i] = 1.0
		}
		return flat
	}
	for i := 0; i < len(sentences)-1; i++ {
		flat[i] = cosineSimilarity(vectors[i], vectors[i+1])
	}
	return flat
}

func (s *semanticStrategy) group(doc Document, sentences []string, similarities []float64) []Chunk {
	minTokens := s.settings.SemanticMinTokens
	maxTokens := s.settings.SemanticMaxTokens
	if maxTokens <= 0 {
		maxTokens = s.settings.Size
	}
	var chunks []Chunk
	var current []string
	currentTokens := 0
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:     strings.Join(current, " "),
			Metadata: cloneMetadata(doc.Metadata),
		})
		current = current[:0]
		currentTokens = 0
	}
	for i, sentence := range sentences {
		tokens := len(s.settings.tokenize(sentence))
		if currentTokens+tokens > maxTokens && currentTokens >= 1 {
			flush()
		}
		current = append(current, sentence)
		currentTokens += tokens
		breakpoint := i < len(similarities) && similarities[i] < s.settings.SemanticThreshold
		if breakpoint && currentTokens >= minTokens {
			flush()
		}
	}
	flush()
	return chunks
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEndPattern.ReplaceAllString(text, "$1\x1f")
	parts := strings.Split(marked, "\x1f")
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
