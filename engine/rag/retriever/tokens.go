package retriever

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator approximates model token counts for context budgeting.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

const estimatorEncoding = "cl100k_base"

// tiktokenEstimator counts tokens with the cl100k_base encoding and falls
// back to a runes/4 heuristic when the encoding cannot be loaded.
type tiktokenEstimator struct {
	encoder *tiktoken.Tiktoken
}

// NewTokenEstimator returns the default estimator.
func NewTokenEstimator() TokenEstimator {
	encoder, _ := tiktoken.GetEncoding(estimatorEncoding)
	return &tiktokenEstimator{encoder: encoder}
}

func (e *tiktokenEstimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if e.encoder != nil {
		return len(e.encoder.Encode(text, nil, nil))
	}
	tokens := utf8.RuneCountInString(text) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}
