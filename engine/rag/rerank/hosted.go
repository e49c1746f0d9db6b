package rerank

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/bidcraft/bidcraft/pkg/config"
)

// hostedProvider calls a Cohere-compatible rerank endpoint.
type hostedProvider struct {
	client *resty.Client
	url    string
	model  string
}

type hostedRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type hostedResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func newHostedProvider(cfg *config.RerankConfig) *hostedProvider {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &hostedProvider{
		client: client,
		url:    cfg.BaseURL,
		model:  cfg.Model,
	}
}

func (p *hostedProvider) Name() string { return "hosted" }

func (p *hostedProvider) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	var parsed hostedResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(hostedRequest{
			Model:     p.model,
			Query:     query,
			Documents: docs,
			TopN:      len(docs),
		}).
		SetResult(&parsed).
		Post(p.url)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rerank endpoint returned %s", resp.Status())
	}
	if len(parsed.Results) == 0 {
		return nil, errors.New("rerank endpoint returned no results")
	}
	scores := make([]float64, len(docs))
	for _, result := range parsed.Results {
		if result.Index < 0 || result.Index >= len(docs) {
			return nil, fmt.Errorf("rerank result index %d out of range", result.Index)
		}
		scores[result.Index] = result.RelevanceScore
	}
	return scores, nil
}
