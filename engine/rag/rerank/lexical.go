package rerank

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// lexicalProvider scores documents by weighted term overlap with the query.
// It is the deterministic in-process fallback when no hosted reranker is
// reachable: rarer query terms count more, repeated terms saturate, and
// longer documents are mildly normalized so boilerplate does not win on
// volume alone.
type lexicalProvider struct{}

func newLexicalProvider() *lexicalProvider {
	return &lexicalProvider{}
}

func (p *lexicalProvider) Name() string { return "lexical" }

func (p *lexicalProvider) Score(_ context.Context, query string, docs []string) ([]float64, error) {
	queryTerms := tokenizeTerms(query)
	if len(queryTerms) == 0 {
		return make([]float64, len(docs)), nil
	}
	docTerms := make([]map[string]int, len(docs))
	docLens := make([]int, len(docs))
	for i, doc := range docs {
		terms := tokenizeTerms(doc)
		counts := make(map[string]int, len(terms))
		for _, term := range terms {
			counts[term]++
		}
		docTerms[i] = counts
		docLens[i] = len(terms)
	}
	// Document frequency over this candidate set stands in for corpus idf.
	df := make(map[string]int, len(queryTerms))
	for _, term := range queryTerms {
		for i := range docs {
			if docTerms[i][term] > 0 {
				df[term]++
			}
		}
	}
	scores := make([]float64, len(docs))
	for i := range docs {
		if docLens[i] == 0 {
			continue
		}
		var score float64
		for _, term := range queryTerms {
			tf := docTerms[i][term]
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + float64(len(docs))/float64(df[term]))
			score += idf * (1 + math.Log(float64(tf)))
		}
		scores[i] = score / math.Sqrt(float64(docLens[i]))
	}
	return scores, nil
}

func tokenizeTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}
