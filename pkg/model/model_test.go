package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAliases(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantID       string
		wantProvider Provider
	}{
		{"sonnet alias", "claude-sonnet-4.5", "claude-sonnet-4-5-20250929", ProviderAnthropic},
		{"sonnet dashed alias", "claude-sonnet-4-5", "claude-sonnet-4-5-20250929", ProviderAnthropic},
		{"opus alias", "claude-opus-4", "claude-opus-4-20250514", ProviderAnthropic},
		{"haiku alias", "claude-haiku-4", "claude-haiku-4-20250313", ProviderAnthropic},
		{"canonical id passthrough", "claude-sonnet-4-5-20250929", "claude-sonnet-4-5-20250929", ProviderAnthropic},
		{"anthropic prefix", "anthropic:claude-sonnet-4.5", "claude-sonnet-4-5-20250929", ProviderAnthropic},
		{"openai passthrough", "gpt-4o", "gpt-4o", ProviderOpenAI},
		{"openai mini", "gpt-4o-mini", "gpt-4o-mini", ProviderOpenAI},
		{"o1", "o1", "o1", ProviderOpenAI},
		{"o1 mini", "o1-mini", "o1-mini", ProviderOpenAI},
		{"openai prefix", "openai:gpt-4o", "gpt-4o", ProviderOpenAI},
		{"gemini", "gemini-2.0-flash", "gemini-2.0-flash", ProviderGemini},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Resolve(tt.input, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, h.ModelID())
			assert.Equal(t, tt.wantProvider, h.Provider())
		})
	}
}

func TestResolveErrors(t *testing.T) {
	_, err := Resolve("", Options{})
	assert.Error(t, err)

	_, err = Resolve("mystery-model-9000", Options{})
	assert.Error(t, err)

	_, err = Resolve("acme:gpt-4o", Options{})
	assert.Error(t, err)
}

func TestResolveDefaults(t *testing.T) {
	h, err := Resolve("claude-sonnet-4.5", Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAnthropicMaxTokens, h.MaxTokens())
	assert.Nil(t, h.Temperature())

	h, err = Resolve("gpt-4o", Options{})
	require.NoError(t, err)
	assert.Zero(t, h.MaxTokens())
}

func TestResolveOverrides(t *testing.T) {
	maxTokens := 10000
	temperature := 0.2

	h, err := Resolve("claude-sonnet-4.5", Options{
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	require.NoError(t, err)
	assert.Equal(t, 10000, h.MaxTokens())
	assert.Equal(t, 0.2, *h.Temperature())
}

func TestAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	assert.Equal(t, "sk-test", APIKey(ProviderAnthropic))
	assert.Empty(t, APIKey(Provider("unknown")))
}
