package chunk

import "context"

// fixedStrategy slides a token window of Size across the text, stepping
// back Overlap tokens between consecutive windows. Splits happen only on
// the separator, so a window never cuts a token in half. Text of N tokens
// yields ceil((N-overlap)/(size-overlap)) chunks; N <= size yields exactly
// one.
type fixedStrategy struct {
	settings Settings
}

func newFixedStrategy(settings Settings) *fixedStrategy {
	return &fixedStrategy{settings: settings}
}

func (f *fixedStrategy) Name() string { return StrategyFixed }

func (f *fixedStrategy) Chunk(_ context.Context, doc Document) []Chunk {
	return windowTokens(doc, f.settings, f.settings.Size, f.settings.Overlap, nil)
}

// windowTokens is the shared window walker; adaptive reuses it with
// recomputed size parameters and extra metadata.
func windowTokens(doc Document, settings Settings, size, overlap int, extraMeta map[string]any) []Chunk {
	tokens := settings.tokenize(doc.Text)
	if len(tokens) == 0 {
		return nil
	}
	if size <= 0 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	sep := settings.separator()
	step := size - overlap
	chunks := make([]Chunk, 0, (len(tokens)+step-1)/step)
	for start := 0; ; start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		metadata := cloneMetadata(doc.Metadata)
		for k, v := range extraMeta {
			metadata[k] = v
		}
		chunks = append(chunks, Chunk{
			Text:     joinTokens(tokens[start:end], sep),
			Metadata: metadata,
		})
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

func joinTokens(tokens []string, sep string) string {
	switch len(tokens) {
	case 0:
		return ""
	case 1:
		return tokens[0]
	}
	n := len(sep) * (len(tokens) - 1)
	for _, t := range tokens {
		n += len(t)
	}
	b := make([]byte, 0, n)
	b = append(b, tokens[0]...)
	for _, t := range tokens[1:] {
		b = append(b, sep...)
		b = append(b, t...)
	}
	return string(b)
}
