package config

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// SectionIDAssistant is the identifier for the reply assistant section
	SectionIDAssistant = "assistant"

	// ProviderOpenAI talks to any OpenAI-compatible chat endpoint (Gemini by default)
	ProviderOpenAI = "openai"

	// ProviderBedrock talks to AWS Bedrock
	ProviderBedrock = "bedrock"
)

// AssistantSection holds the settings read by the generation service on
// every request.
type AssistantSection struct {
	APIKey             string
	Provider           string
	Model              string
	BaseURL            string
	Region             string
	AnalyzeAttachments bool
	mu                 sync.RWMutex
}

// NewAssistantSection creates an assistant section with default settings.
func NewAssistantSection() *AssistantSection {
	return &AssistantSection{Provider: ProviderOpenAI}
}

// ID returns the section identifier.
func (s *AssistantSection) ID() string {
	return SectionIDAssistant
}

// Title returns the section title.
func (s *AssistantSection) Title() string {
	return "Reply Assistant"
}

// Description returns the section description.
func (s *AssistantSection) Description() string {
	return "Credential and model used to generate replies. analyze_attachments adds detected attachment names to the prompt."
}

// Data returns the current configuration data.
func (s *AssistantSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"api_key":             s.APIKey,
		"analyze_attachments": s.AnalyzeAttachments,
		"provider":            s.Provider,
		"model":               s.Model,
		"base_url":            s.BaseURL,
		"region":              s.Region,
	}
}

// SetData updates the configuration from the provided data.
// Unknown keys are ignored.
func (s *AssistantSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range data {
		switch key {
		case "analyze_attachments":
			enabled, ok := value.(bool)
			if !ok {
				return fmt.Errorf("invalid value type for analyze_attachments: expected bool, got %T", value)
			}
			s.AnalyzeAttachments = enabled
		case "api_key", "provider", "model", "base_url", "region":
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type for %s: expected string, got %T", key, value)
			}
			s.setString(key, strings.TrimSpace(str))
		}
	}

	return nil
}

func (s *AssistantSection) setString(key, value string) {
	switch key {
	case "api_key":
		s.APIKey = value
	case "provider":
		s.Provider = value
	case "model":
		s.Model = value
	case "base_url":
		s.BaseURL = value
	case "region":
		s.Region = value
	}
}

// Validate validates the current configuration. A missing API key is not a
// validation error; it surfaces as ConfigurationMissing at generation time.
func (s *AssistantSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.Provider {
	case "", ProviderOpenAI, ProviderBedrock:
		return nil
	default:
		return fmt.Errorf("unknown provider %q: expected %s or %s", s.Provider, ProviderOpenAI, ProviderBedrock)
	}
}

// Reset resets the section to default configuration.
func (s *AssistantSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.APIKey = ""
	s.Provider = ProviderOpenAI
	s.Model = ""
	s.BaseURL = ""
	s.Region = ""
	s.AnalyzeAttachments = false
}

// GetAPIKey returns the configured API key.
func (s *AssistantSection) GetAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.APIKey
}

// SetAPIKey sets the API key.
func (s *AssistantSection) SetAPIKey(apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.APIKey = strings.TrimSpace(apiKey)
}

// GetAnalyzeAttachments reports whether attachment names go into the prompt.
func (s *AssistantSection) GetAnalyzeAttachments() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.AnalyzeAttachments
}

// SetAnalyzeAttachments toggles attachment analysis.
func (s *AssistantSection) SetAnalyzeAttachments(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AnalyzeAttachments = enabled
}

// Snapshot returns a copy of the settings that is safe to use without locks.
func (s *AssistantSection) Snapshot() AssistantSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	provider := s.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}
	return AssistantSettings{
		APIKey:             s.APIKey,
		Provider:           provider,
		Model:              s.Model,
		BaseURL:            s.BaseURL,
		Region:             s.Region,
		AnalyzeAttachments: s.AnalyzeAttachments,
	}
}

// AssistantSettings is an immutable view of AssistantSection.
type AssistantSettings struct {
	APIKey             string `json:"api_key"`
	Provider           string `json:"provider"`
	Model              string `json:"model"`
	BaseURL            string `json:"base_url"`
	Region             string `json:"region"`
	AnalyzeAttachments bool   `json:"analyze_attachments"`
}

// MaskedKey returns the API key with all but the last four characters hidden.
func (a AssistantSettings) MaskedKey() string {
	if a.APIKey == "" {
		return ""
	}
	if len(a.APIKey) <= 4 {
		return strings.Repeat("*", len(a.APIKey))
	}
	return strings.Repeat("*", len(a.APIKey)-4) + a.APIKey[len(a.APIKey)-4:]
}
