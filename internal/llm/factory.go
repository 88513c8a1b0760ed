package llm

import (
	"context"
	"fmt"
	"strings"
)

// APIKeys holds the provider credentials.
type APIKeys struct {
	OpenAI    string
	Gemini    string
	Anthropic string
}

// NewClientForModel picks the provider from the model prefix.
func NewClientForModel(ctx context.Context, model string, keys APIKeys) (LLMClient, error) {
	switch {
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		client, err := NewOpenAIClient(keys.OpenAI)
		if err != nil {
			return nil, err
		}
		return client, nil
	case strings.HasPrefix(model, "claude"):
		client, err := NewAnthropicClient(keys.Anthropic)
		if err != nil {
			return nil, err
		}
		return client, nil
	case strings.HasPrefix(model, "gemini"):
		client, err := NewGeminiClient(ctx, keys.Gemini, model)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("no provider for model %q", model)
}
