// Package generate turns a transcript into a reply through the configured
// text-generation provider.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/mailwright/pkg/config"
	"github.com/entrhq/mailwright/pkg/llm"
	"github.com/entrhq/mailwright/pkg/llm/parser"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/tokenizer"
	"github.com/entrhq/mailwright/pkg/types"
)

// DefaultTranscriptBudget is the token budget for the email chain.
const DefaultTranscriptBudget = 24000

// Settings supplies the assistant settings. Implementations must not cache:
// Generate reads them on every request.
type Settings interface {
	Assistant() (config.AssistantSettings, error)
}

// ProviderFactory builds a provider for settings.
type ProviderFactory func(ctx context.Context, settings config.AssistantSettings) (llm.Provider, error)

// Service generates replies.
type Service struct {
	settings  Settings
	factory   ProviderFactory
	tokenizer *tokenizer.Tokenizer
	budget    int
	log       *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithProviderFactory replaces config.BuildProvider.
func WithProviderFactory(f ProviderFactory) Option {
	return func(s *Service) { s.factory = f }
}

// WithTokenizer sets the tokenizer used for the transcript budget.
func WithTokenizer(t *tokenizer.Tokenizer) Option {
	return func(s *Service) { s.tokenizer = t }
}

// WithBudget sets the transcript token budget. Zero disables truncation.
func WithBudget(tokens int) Option {
	return func(s *Service) { s.budget = tokens }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a service reading settings from src.
func NewService(src Settings, opts ...Option) *Service {
	s := &Service{
		settings: src,
		factory:  config.BuildProvider,
		budget:   DefaultTranscriptBudget,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokenizer == nil {
		tok, err := tokenizer.New()
		if err != nil {
			s.log.Warnf("using estimated token counts: %v", err)
		}
		s.tokenizer = tok
	}
	return s
}

// Generate returns the reply text for req.
func (s *Service) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	settings, err := s.settings.Assistant()
	if err != nil {
		return "", types.WrapError(types.KindServiceError, err)
	}
	if err := requireKey(settings); err != nil {
		return "", err
	}

	provider, err := s.factory(ctx, settings)
	if err != nil {
		return "", err
	}

	transcript := s.tokenizer.KeepTail(req.Transcript, s.budget)
	if len(transcript) != len(req.Transcript) {
		s.log.Infof("transcript truncated to %d tokens", s.budget)
	}

	pb := NewPromptBuilder().WithTranscript(transcript).WithTone(req.Tone)
	if settings.AnalyzeAttachments && req.Attachments != nil {
		pb.WithAttachments(*req.Attachments)
	}

	s.log.Infof("generating %s reply for %s with %s", req.Tone, req.Host, provider.GetModel())
	return s.complete(ctx, provider, pb.Build())
}

// TestConnection sends the connection test prompt with apiKey, or the stored key when
// apiKey is empty, and returns the model's answer.
func (s *Service) TestConnection(ctx context.Context, apiKey string) (string, error) {
	settings, err := s.settings.Assistant()
	if err != nil {
		return "", types.WrapError(types.KindServiceError, err)
	}
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		settings.APIKey = apiKey
	}
	if err := requireKey(settings); err != nil {
		return "", err
	}
	provider, err := s.factory(ctx, settings)
	if err != nil {
		return "", err
	}
	return s.complete(ctx, provider, ConnectionTestPrompt)
}

func (s *Service) complete(ctx context.Context, provider llm.Provider, prompt string) (string, error) {
	resp, err := provider.Complete(ctx, []*types.Message{types.NewUserMessage(prompt)}, llm.DefaultOptions())
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if types.KindOf(err) == types.KindUnknown {
			err = types.WrapError(types.KindServiceError, err)
		}
		s.log.Errorf("generation failed: %v", err)
		return "", err
	}
	if resp == nil {
		return "", types.NewError(types.KindServiceError, "Invalid response from generation service")
	}
	text := strings.TrimSpace(parser.StripThinking(resp.Content))
	if text == "" {
		return "", types.NewError(types.KindServiceError, "Invalid response from generation service")
	}
	return text, nil
}

func requireKey(settings config.AssistantSettings) error {
	if settings.Provider == config.ProviderBedrock {
		return nil
	}
	if settings.APIKey == "" {
		return types.NewError(types.KindConfigurationMissing, fmt.Sprintf("%s API key not configured", keyName(settings)))
	}
	return nil
}

func keyName(settings config.AssistantSettings) string {
	if settings.BaseURL == "" {
		return "Gemini"
	}
	return "Provider"
}
