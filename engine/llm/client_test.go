package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/bidcraft/bidcraft/pkg/config"
)

type fakeModel struct {
	response string
	err      error
	sawCtx   context.Context
}

func (f *fakeModel) GenerateContent(
	ctx context.Context,
	_ []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	f.sawCtx = ctx
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, _ string, _ ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return the model output", func(t *testing.T) {
		client := Wrap(&fakeModel{response: "the budget is 250k"}, 0)
		out, err := client.Complete(ctx, "what is the budget?")
		require.NoError(t, err)
		assert.Equal(t, "the budget is 250k", out)
	})

	t.Run("Should reject empty prompts", func(t *testing.T) {
		client := Wrap(&fakeModel{response: "x"}, 0)
		_, err := client.Complete(ctx, "   ")
		require.Error(t, err)
	})

	t.Run("Should wrap model failures", func(t *testing.T) {
		client := Wrap(&fakeModel{err: errors.New("overloaded")}, 0)
		_, err := client.Complete(ctx, "question")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "completion failed")
	})

	t.Run("Should bound the call with the configured timeout", func(t *testing.T) {
		model := &fakeModel{response: "ok"}
		client := Wrap(model, time.Minute)
		_, err := client.Complete(ctx, "question")
		require.NoError(t, err)
		deadline, ok := model.sawCtx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	})
}

func TestNew(t *testing.T) {
	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := New(&config.LLMConfig{Provider: "anthropic", Model: "x"})
		require.Error(t, err)
	})

	t.Run("Should require a config", func(t *testing.T) {
		_, err := New(nil)
		require.Error(t, err)
	})
}
