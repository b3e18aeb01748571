// Package llm provides abstractions for text-generation provider integration.
//
// Example usage:
//
//	provider, err := openai.NewProvider(apiKey, openai.WithModel("gemini-1.5-flash"))
//	if err != nil {
//	    return err
//	}
//
//	reply, err := provider.Complete(ctx, []*types.Message{
//	    types.NewUserMessage(prompt),
//	}, llm.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	fmt.Println(reply.Content)
package llm

import (
	"context"

	"github.com/entrhq/mailwright/pkg/types"
)

// Options are the sampling parameters of a single completion.
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DefaultOptions returns the sampling parameters used for reply generation.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		TopP:        0.8,
		MaxTokens:   1024,
	}
}

// Provider defines the interface for text-generation integrations.
//
// Providers only handle API communication. Prompt construction, settings
// lookup and error presentation belong to the generation service.
type Provider interface {
	// Complete sends messages to the model and returns the full response.
	//
	// Failures are returned as *types.Error of kind ServiceError, carrying
	// the upstream HTTP status when one is known.
	Complete(ctx context.Context, messages []*types.Message, opts Options) (*types.Message, error)

	// GetModelInfo returns information about the model being used.
	GetModelInfo() *types.ModelInfo

	// GetModel returns the model name being used.
	GetModel() string
}

// Func adapts a function to the Provider interface. Useful in tests.
type Func func(ctx context.Context, messages []*types.Message, opts Options) (*types.Message, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, messages []*types.Message, opts Options) (*types.Message, error) {
	return f(ctx, messages, opts)
}

// GetModelInfo returns a placeholder model description.
func (f Func) GetModelInfo() *types.ModelInfo {
	return &types.ModelInfo{Provider: "func", Name: "func", Metadata: map[string]interface{}{}}
}

// GetModel returns a placeholder model name.
func (f Func) GetModel() string {
	return "func"
}
