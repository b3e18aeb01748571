package config

import (
	"context"
	"fmt"

	"github.com/entrhq/mailwright/pkg/llm"
	"github.com/entrhq/mailwright/pkg/llm/bedrock"
	"github.com/entrhq/mailwright/pkg/llm/openai"
	"github.com/entrhq/mailwright/pkg/types"
)

// Overrides are command-line values. Non-empty fields win over the
// environment and the config file.
type Overrides struct {
	APIKey   string
	Model    string
	BaseURL  string
	Provider string
}

// Apply resolves settings with the precedence
// CLI flags > environment variables > config file > defaults.
// Environment overrides are already folded in by Live.Assistant.
func (o Overrides) Apply(settings AssistantSettings) AssistantSettings {
	if o.APIKey != "" {
		settings.APIKey = o.APIKey
	}
	if o.Model != "" {
		settings.Model = o.Model
	}
	if o.BaseURL != "" {
		settings.BaseURL = o.BaseURL
	}
	if o.Provider != "" {
		settings.Provider = o.Provider
	}
	if settings.Provider == "" {
		settings.Provider = ProviderOpenAI
	}
	return settings
}

// BuildProvider creates the provider named by settings.
// The openai provider needs an API key; bedrock uses the AWS credential chain.
func BuildProvider(ctx context.Context, settings AssistantSettings) (llm.Provider, error) {
	switch settings.Provider {
	case "", ProviderOpenAI:
		if settings.APIKey == "" {
			return nil, types.NewError(types.KindConfigurationMissing, "Gemini API key not configured")
		}
		provider, err := openai.NewProvider(settings.APIKey,
			openai.WithModel(settings.Model),
			openai.WithBaseURL(settings.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		return provider, nil

	case ProviderBedrock:
		provider, err := bedrock.NewProvider(ctx, settings.Region, settings.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		return provider, nil

	default:
		return nil, types.Errorf(types.KindConfigurationMissing, "unknown provider %q", settings.Provider)
	}
}
