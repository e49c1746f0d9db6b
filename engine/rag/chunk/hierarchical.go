package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/bidcraft/bidcraft/pkg/logger"
)

// charsPerToken approximates prose density when mapping token budgets onto
// the character-based recursive splitter.
const charsPerToken = 4

// hierarchicalStrategy emits large parent sections followed by the small
// child passages inside each of them (tree pre-order). Children carry their
// parent's id so retrieval can expand a matched child to its parent
// context.
type hierarchicalStrategy struct {
	settings Settings
}

func newHierarchicalStrategy(settings Settings) *hierarchicalStrategy {
	return &hierarchicalStrategy{settings: settings}
}

func (h *hierarchicalStrategy) Name() string { return StrategyHierarchical }

func (h *hierarchicalStrategy) Chunk(ctx context.Context, doc Document) []Chunk {
	parents := h.splitParents(ctx, doc.Text)
	if len(parents) == 0 {
		return nil
	}
	childSettings := h.settings
	childSettings.Size = h.childSize()
	if childSettings.Overlap >= childSettings.Size {
		childSettings.Overlap = childSettings.Size / 4
	}
	var chunks []Chunk
	for pi, parentText := range parents {
		parentID := hashID(fmt.Sprintf("%d::%s", pi, parentText))
		parentMeta := cloneMetadata(doc.Metadata)
		parentMeta[MetaNodeType] = NodeTypeParent
		parentMeta[MetaParentID] = parentID
		parentMeta[MetaParentIndex] = pi
		chunks = append(chunks, Chunk{Text: parentText, Metadata: parentMeta})
		children := windowTokens(Document{Text: parentText, Metadata: doc.Metadata}, childSettings,
			childSettings.Size, childSettings.Overlap, map[string]any{
				MetaNodeType:    NodeTypeChild,
				MetaParentID:    parentID,
				MetaParentIndex: pi,
			})
		chunks = append(chunks, children...)
	}
	return chunks
}

func (h *hierarchicalStrategy) splitParents(ctx context.Context, text string) []string {
	if text == "" {
		return nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(h.parentSize()*charsPerToken),
		textsplitter.WithChunkOverlap(0),
	)
	sections, err := splitter.SplitText(text)
	if err != nil {
		logger.FromContext(ctx).Warn("parent sectioning failed, using whole document", "error", err)
		return []string{text}
	}
	parents := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != "" {
			parents = append(parents, s)
		}
	}
	return parents
}

func (h *hierarchicalStrategy) parentSize() int {
	if h.settings.ParentSize > 0 {
		return h.settings.ParentSize
	}
	return h.settings.Size * 4
}

func (h *hierarchicalStrategy) childSize() int {
	if h.settings.ChildSize > 0 {
		return h.settings.ChildSize
	}
	return h.settings.Size
}

func hashID(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}
