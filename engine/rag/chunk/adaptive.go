package chunk

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/bidcraft/bidcraft/pkg/logger"
)

const (
	minAdaptiveSize = 64
	maxAdaptiveSize = 4096

	// denseTokenRatio marks token-dense text (tables, number grids encode
	// more tokens per rune than prose).
	denseTokenRatio = 0.45
	// tabularLineRatio marks documents dominated by tabular lines.
	tabularLineRatio = 0.4
	// longProseRunes marks documents long enough to benefit from larger
	// windows.
	longProseRunes = 20000
)

const adaptiveEncoding = "cl100k_base"

// adaptiveStrategy measures each document's density and structure, then
// delegates to the fixed window walker with size parameters recomputed per
// call: shorter windows for dense tabular content, longer for sustained
// prose.
type adaptiveStrategy struct {
	settings Settings
	encoder  *tiktoken.Tiktoken
}

func newAdaptiveStrategy(settings Settings) *adaptiveStrategy {
	// Encoding assets ship with the library; a failure here would mean a
	// broken installation, and density falls back to a rune heuristic.
	encoder, _ := tiktoken.GetEncoding(adaptiveEncoding)
	return &adaptiveStrategy{settings: settings, encoder: encoder}
}

func (a *adaptiveStrategy) Name() string { return StrategyAdaptive }

func (a *adaptiveStrategy) Chunk(ctx context.Context, doc Document) []Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}
	size, overlap := a.effectiveSettings(doc.Text)
	logger.FromContext(ctx).Debug(
		"adaptive chunk settings",
		"size", size,
		"overlap", overlap,
		"text_runes", utf8.RuneCountInString(doc.Text),
	)
	return windowTokens(doc, a.settings, size, overlap, map[string]any{MetaChunkSize: size})
}

func (a *adaptiveStrategy) effectiveSettings(text string) (int, int) {
	size := a.settings.Size
	overlap := a.settings.Overlap
	runes := utf8.RuneCountInString(text)

	switch {
	case a.isTabular(text):
		size = clampSize(size / 2)
	case runes > longProseRunes:
		size = clampSize(size * 2)
		overlap = maxInt(overlap, size/5)
	case runes < 1500:
		size = clampSize(maxInt(minAdaptiveSize, size/2))
	}
	return size, clampOverlap(overlap, size)
}

// isTabular combines token density with the share of table-shaped lines.
func (a *adaptiveStrategy) isTabular(text string) bool {
	if a.tokenRatio(text) > denseTokenRatio {
		return true
	}
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return false
	}
	tabular := 0
	for _, line := range lines {
		if looksTabular(line) {
			tabular++
		}
	}
	return float64(tabular)/float64(len(lines)) > tabularLineRatio
}

// tokenRatio is model tokens per rune; prose sits near 0.25, digit grids
// and code-like content run much higher.
func (a *adaptiveStrategy) tokenRatio(text string) float64 {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	if a.encoder == nil {
		return 0
	}
	tokens := len(a.encoder.Encode(text, nil, nil))
	return float64(tokens) / float64(runes)
}

func looksTabular(line string) bool {
	if strings.Count(line, "\t") >= 2 || strings.Count(line, "|") >= 2 {
		return true
	}
	digits := 0
	for _, r := range line {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	trimmed := len(strings.TrimSpace(line))
	return trimmed > 0 && float64(digits)/float64(trimmed) > 0.3
}

func clampSize(size int) int {
	if size < minAdaptiveSize {
		return minAdaptiveSize
	}
	if size > maxAdaptiveSize {
		return maxAdaptiveSize
	}
	return size
}

func clampOverlap(overlap, size int) int {
	if overlap < 0 {
		return 0
	}
	if overlap >= size {
		return size / 4
	}
	return overlap
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
