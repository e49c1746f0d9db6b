// Package llm exposes the completion capability the RAG pipeline consumes.
// The pipeline treats text generation as opaque: it hands over a prompt and
// receives a string, with provider selection and transport handled here.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/bidcraft/bidcraft/pkg/config"
)

// Client is the completion capability consumed by chat answering and
// structured extraction.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type langchainClient struct {
	model   llms.Model
	timeout time.Duration
}

// New constructs a provider-backed completion client.
func New(cfg *config.LLMConfig) (Client, error) {
	if cfg == nil {
		return nil, errors.New("llm: config is required")
	}
	model, err := buildModel(cfg)
	if err != nil {
		return nil, err
	}
	return &langchainClient{model: model, timeout: cfg.Timeout}, nil
}

// Wrap adapts an existing langchaingo model; used by tests.
func Wrap(model llms.Model, timeout time.Duration) Client {
	return &langchainClient{model: model, timeout: timeout}
}

func (c *langchainClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("llm: prompt is required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
	if err != nil {
		return "", fmt.Errorf("llm: completion failed: %w", err)
	}
	return out, nil
}

func buildModel(cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("llm: provider %q is not supported", cfg.Provider)
	}
}
