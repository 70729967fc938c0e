// Package model resolves model identifiers and friendly aliases into typed
// handles carrying provider defaults. A handle is the code-level alternative
// to a model string in AgentConfig: callers that already built one hand it to
// the agent factory directly and skip resolution entirely.
package model

import (
	"fmt"
	"os"
	"strings"
)

// Provider identifies a model vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
)

// DefaultAnthropicMaxTokens is applied to Anthropic models when no explicit
// max_tokens is configured. Anthropic requires the field; the default is
// sized for long-form agent responses.
const DefaultAnthropicMaxTokens = 20000

// LLM is a resolved language model handle.
type LLM interface {
	// ModelID returns the canonical provider-side model identifier.
	ModelID() string

	// Provider returns the model vendor.
	Provider() Provider
}

// Handle is the registry's LLM implementation.
type Handle struct {
	id          string
	provider    Provider
	maxTokens   int
	temperature *float64
}

func (h *Handle) ModelID() string { return h.id }

func (h *Handle) Provider() Provider { return h.provider }

// MaxTokens returns the completion cap, 0 when the provider default applies.
func (h *Handle) MaxTokens() int { return h.maxTokens }

// Temperature returns the sampling temperature, nil when unset.
func (h *Handle) Temperature() *float64 { return h.temperature }

var _ LLM = (*Handle)(nil)

// aliases maps friendly names to canonical model IDs. Canonical IDs and
// provider-recognizable names pass through unchanged.
var aliases = map[string]string{
	"claude-sonnet-4.5": "claude-sonnet-4-5-20250929",
	"claude-sonnet-4-5": "claude-sonnet-4-5-20250929",
	"claude-opus-4":     "claude-opus-4-20250514",
	"claude-haiku-4":    "claude-haiku-4-20250313",
}

// Options carries optional sampling overrides applied during resolution.
type Options struct {
	MaxTokens   *int
	Temperature *float64
}

// Resolve turns a model string into a Handle. Accepted forms:
//
//	claude-sonnet-4.5              friendly alias
//	claude-sonnet-4-5-20250929     canonical ID, provider inferred
//	anthropic:claude-sonnet-4.5    explicit provider prefix
//	openai:gpt-4o
//
// Anthropic models get DefaultAnthropicMaxTokens unless opts overrides it;
// other providers are left on their own defaults.
func Resolve(name string, opts Options) (*Handle, error) {
	if name == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}

	var provider Provider
	if prefix, rest, ok := strings.Cut(name, ":"); ok {
		switch Provider(prefix) {
		case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
			provider = Provider(prefix)
			name = rest
		default:
			return nil, fmt.Errorf("unknown model provider prefix %q", prefix)
		}
	}

	if canonical, ok := aliases[name]; ok {
		name = canonical
	}

	if provider == "" {
		detected, err := detectProvider(name)
		if err != nil {
			return nil, err
		}
		provider = detected
	}

	h := &Handle{
		id:          name,
		provider:    provider,
		temperature: opts.Temperature,
	}

	switch {
	case opts.MaxTokens != nil:
		h.maxTokens = *opts.MaxTokens
	case provider == ProviderAnthropic:
		h.maxTokens = DefaultAnthropicMaxTokens
	}

	return h, nil
}

// detectProvider infers the vendor from well-known model name prefixes.
func detectProvider(name string) (Provider, error) {
	switch {
	case strings.HasPrefix(name, "claude"):
		return ProviderAnthropic, nil
	case strings.HasPrefix(name, "gpt"),
		strings.HasPrefix(name, "o1"),
		strings.HasPrefix(name, "o3"),
		strings.HasPrefix(name, "o4"):
		return ProviderOpenAI, nil
	case strings.HasPrefix(name, "gemini"):
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("cannot infer provider for model %q; use an explicit prefix like \"anthropic:%s\"", name, name)
	}
}

// APIKey returns the provider's API key from the environment.
func APIKey(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	default:
		return ""
	}
}
