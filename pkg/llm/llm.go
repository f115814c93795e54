// Package llm provides the language-model client used to turn KPI summaries
// into narrative insights.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client completes a prompt into text. Implementations must be safe for
// concurrent use.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient is a Client backed by an OpenAI-compatible chat model.
type OpenAIClient struct {
	model       llms.Model
	temperature float64
}

// NewOpenAIClient builds a client for the given API key and model name.
func NewOpenAIClient(apiKey, model string, temperature float64) (*OpenAIClient, error) {
	m, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return &OpenAIClient{model: m, temperature: temperature}, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(c.temperature))
}
