package agent

import (
	"context"
	"fmt"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest is a single-prompt completion request.
type LLMRequest struct {
	Model       string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// ProviderCreator creates LLM providers from auth profiles.
type ProviderCreator interface {
	NewProvider(profile AuthProfile) (LLMProvider, error)
}

// ProviderFactory creates the built-in providers.
type ProviderFactory struct {
	// BaseURLs overrides the endpoint per provider name.
	BaseURLs map[string]string
}

// NewProvider creates a new LLM provider based on auth profile
func (f *ProviderFactory) NewProvider(profile AuthProfile) (LLMProvider, error) {
	if profile.APIKey == "" {
		return nil, fmt.Errorf("profile %q has no api key", profile.ID)
	}
	baseURL := f.BaseURLs[profile.Provider]

	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey, baseURL), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey, baseURL), nil
	case "gemini":
		return NewGeminiProvider(profile.APIKey, baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-3-5-sonnet-20241022"
	case "openai":
		return "gpt-4.1-mini"
	case "gemini":
		return "gemini-1.5-flash"
	default:
		return ""
	}
}
