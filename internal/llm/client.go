// Package llm contains the provider clients the chat session talks to. Each
// client offers the manifest's functions to the model and reports back at
// most one function call per generation.
package llm

import (
	"context"

	"github.com/dileep-u-k/function-gateway/internal/chat"
	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/tools"
)

// =================================================================================
// Core Data Structures
// =================================================================================

// Usage reports token consumption of one generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// GenerationConfig holds the parameters that control one generation.
type GenerationConfig struct {
	// Model to use, e.g. "gpt-4o-mini" or "gemini-1.5-flash".
	Model string
	// A pointer so that 0.0 can be told apart from unset.
	Temperature *float32
	// MaxTokens bounds the completion; 0 uses the provider default.
	MaxTokens int
}

// GenerationResult is the complete output of one generation.
type GenerationResult struct {
	// Content is the assistant text, possibly empty when a function is called.
	Content string
	// FunctionCall is the function the model wants to run, or nil.
	FunctionCall *function.Request
	// Usage is the token accounting reported by the provider.
	Usage Usage
}

// =================================================================================
// LLM Client Interface
// =================================================================================

// LLMClient is implemented by every provider client.
type LLMClient interface {
	// Generate sends the conversation and the offered functions and blocks
	// until the model answers.
	Generate(
		ctx context.Context,
		messages []chat.Message,
		config *GenerationConfig,
		functions []tools.Function,
	) (*GenerationResult, error)
}
