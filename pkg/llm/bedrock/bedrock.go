// Package bedrock provides an AWS Bedrock provider for Anthropic models.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/entrhq/mailwright/pkg/llm"
	"github.com/entrhq/mailwright/pkg/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "anthropic.claude-3-haiku-20240307-v1"

// Invoker is the subset of the Bedrock runtime client used by Provider.
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements llm.Provider on top of Bedrock InvokeModel.
type Provider struct {
	svc       Invoker
	region    string
	model     string
	modelInfo *types.ModelInfo
}

// NewProvider loads the default AWS config chain and creates a provider.
// An empty region is resolved from the AWS profile or environment.
func NewProvider(ctx context.Context, region, model string) (*Provider, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, types.WrapError(types.KindConfigurationMissing, fmt.Errorf("failed to load AWS config: %w", err))
	}
	if cfg.Region == "" {
		return nil, types.NewError(types.KindConfigurationMissing, "AWS region not resolved. Set region in the assistant settings, AWS_REGION or the selected AWS profile")
	}

	return NewWithClient(bedrockruntime.NewFromConfig(cfg), cfg.Region, model), nil
}

// NewWithClient creates a provider over an existing client.
func NewWithClient(svc Invoker, region, model string) *Provider {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Provider{
		svc:    svc,
		region: region,
		model:  model,
		modelInfo: &types.ModelInfo{
			Provider:  "bedrock",
			Name:      model,
			MaxTokens: 200000,
			Metadata:  map[string]interface{}{"region": region},
		},
	}
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature,omitempty"`
	TopP             float64            `json:"top_p,omitempty"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete invokes the model with an Anthropic messages body.
func (p *Provider) Complete(ctx context.Context, messages []*types.Message, opts llm.Options) (*types.Message, error) {
	if !strings.Contains(strings.ToLower(p.model), "anthropic.") {
		return nil, types.Errorf(types.KindServiceError, "unsupported Bedrock model family for %q", p.model)
	}

	body, err := json.Marshal(buildRequest(messages, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	modelID := normalizeModelID(p.model)
	out, err := p.svc.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, types.WrapError(types.KindServiceError, annotateError(fmt.Errorf("bedrock invoke error: %w", err), modelID))
	}

	text, err := parseResponse(out.Body)
	if err != nil {
		return nil, types.WrapError(types.KindServiceError, err)
	}
	return types.NewAssistantMessage(text), nil
}

// GetModelInfo returns information about the model being used.
func (p *Provider) GetModelInfo() *types.ModelInfo {
	return p.modelInfo
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

func buildRequest(messages []*types.Message, opts llm.Options) anthropicRequest {
	req := anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        opts.MaxTokens,
		Temperature:      opts.Temperature,
		TopP:             opts.TopP,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}

	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += msg.Content
			continue
		}
		role := "user"
		if msg.Role == types.RoleAssistant {
			role = "assistant"
		}
		req.Messages = append(req.Messages, anthropicMessage{
			Role:    role,
			Content: []anthropicContent{{Type: "text", Text: msg.Content}},
		})
	}
	return req
}

// normalizeModelID appends the :0 revision suffix some integrations need.
// ARNs and inference profiles are left alone.
func normalizeModelID(model string) string {
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "arn:") || strings.Contains(lower, "inference-profile/") {
		return model
	}
	if !strings.Contains(model, ":") {
		return model + ":0"
	}
	return model
}

func parseResponse(body []byte) (string, error) {
	var resp struct {
		Content []anthropicContent `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		var alt struct {
			OutputText string `json:"outputText"`
		}
		if err2 := json.Unmarshal(body, &alt); err2 == nil && strings.TrimSpace(alt.OutputText) != "" {
			return strings.TrimSpace(alt.OutputText), nil
		}
		return "", fmt.Errorf("failed to decode Anthropic response: %w", err)
	}
	for _, c := range resp.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			return strings.TrimSpace(c.Text), nil
		}
	}
	return "", fmt.Errorf("empty response from Bedrock Anthropic model")
}

// annotateError adds hints for common model ID mistakes.
func annotateError(err error, modelID string) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "validationexception") && strings.Contains(msg, "throughput isn't supported") {
		return fmt.Errorf("%w\nHint: this model may require an inference profile. Set the model to the profile ID or ARN for %q", err, modelID)
	}
	if strings.Contains(msg, "provided model identifier is invalid") {
		return fmt.Errorf("%w\nHint: verify the Bedrock model ID. Regional prefixes (us.) and the revision suffix (:0) may be required", err)
	}
	return err
}
