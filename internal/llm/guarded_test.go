package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"milestonez/internal/llm"
	"milestonez/internal/llm/llmtest"
	"milestonez/pkg/circuitbreaker"
)

func TestGuarded_WrapsProviderErrors(t *testing.T) {
	fake := llmtest.New()
	fake.CompleteErr = errors.New("boom")
	g := llm.NewGuarded(fake, circuitbreaker.Config{FailureThreshold: 5}, zaptest.NewLogger(t))

	_, _, err := g.Complete(context.Background(), "gpt-4o", "hi")
	var pErr *llm.ProviderError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "fake", pErr.Provider)
	assert.Equal(t, "complete", pErr.Op)
	assert.EqualError(t, pErr.Err, "boom")
}

func TestGuarded_OpensAfterThreshold(t *testing.T) {
	fake := llmtest.New()
	fake.EmbedErr = errors.New("down")
	g := llm.NewGuarded(fake, circuitbreaker.Config{FailureThreshold: 2, Timeout: time.Minute}, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		_, err := g.Embed(context.Background(), "x")
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, g.BreakerState())

	_, err := g.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	assert.Len(t, fake.EmbedInputs, 2)
}

func TestGuarded_CancelDoesNotTrip(t *testing.T) {
	fake := llmtest.New()
	fake.EmbedErr = context.Canceled
	g := llm.NewGuarded(fake, circuitbreaker.Config{FailureThreshold: 1}, zaptest.NewLogger(t))

	_, err := g.Embed(context.Background(), "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, circuitbreaker.StateClosed, g.BreakerState())
}

func TestGuarded_PassesThrough(t *testing.T) {
	g := llm.NewGuarded(llmtest.New(), circuitbreaker.DefaultConfig(), zaptest.NewLogger(t))

	text, usage, err := g.Complete(context.Background(), "gpt-4o", "hi")
	require.NoError(t, err)
	assert.Equal(t, "summary", text)
	assert.Equal(t, 1, usage.Requests)

	name, err := g.Resolve("GPT 3.5 Turbo")
	require.NoError(t, err)
	assert.Equal(t, "gpt-35-turbo", name)
}

func TestUsage_String(t *testing.T) {
	var u llm.Usage
	u.Add(llm.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3, Requests: 1})
	u.Add(llm.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3, Requests: 1})
	assert.Equal(t, "Tokens Used: 6\n\tPrompt Tokens: 2\n\tCompletion Tokens: 4\nSuccessful Requests: 2", u.String())
}
