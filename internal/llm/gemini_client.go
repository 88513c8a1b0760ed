package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dileep-u-k/function-gateway/internal/chat"
	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/tools"
)

// GeminiClient talks to Google's Gemini models through the SDK.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
}

var _ LLMClient = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, defaultModel: modelID}, nil
}

// Close releases the SDK client.
func (c *GeminiClient) Close() error { return c.client.Close() }

// Generate runs one chat turn. A model is created per call because the SDK
// configures tools and parameters on the model value.
func (c *GeminiClient) Generate(
	ctx context.Context,
	messages []chat.Message,
	config *GenerationConfig,
	functions []tools.Function,
) (*GenerationResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("gemini: no messages to send")
	}
	modelID := c.defaultModel
	if config != nil && config.Model != "" {
		modelID = config.Model
	}
	model := c.client.GenerativeModel(modelID)
	configureModel(model, config, functions)

	system, rest := splitSystem(messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(rest) == 0 {
		return nil, errors.New("gemini: no user message to send")
	}

	session := model.StartChat()
	session.History = toGeminiContents(rest[:len(rest)-1])
	resp, err := session.SendMessage(ctx, toGeminiParts(rest[len(rest)-1])...)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return parseGeminiResponse(resp)
}

func configureModel(model *genai.GenerativeModel, config *GenerationConfig, functions []tools.Function) {
	model.SetMaxOutputTokens(defaultMaxTokens)
	if config != nil {
		if config.Temperature != nil {
			model.SetTemperature(*config.Temperature)
		}
		if config.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(config.MaxTokens))
		}
	}
	if len(functions) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(functions))
		for _, fn := range functions {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  convertSchema(fn.Parameters),
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
}

// convertSchema converts a JSONSchema into the SDK's schema type.
func convertSchema(s tools.JSONSchema) *genai.Schema {
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = convertSchema(*v)
		}
	}
	if s.Items != nil {
		out.Items = convertSchema(*s.Items)
	}
	return out
}

func splitSystem(messages []chat.Message) (string, []chat.Message) {
	var system []string
	rest := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == chat.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

func toGeminiContents(messages []chat.Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == chat.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: toGeminiParts(msg)})
	}
	return history
}

// toGeminiParts maps a message to SDK parts. Function results become
// FunctionResponse parts and assistant function calls become FunctionCall
// parts.
func toGeminiParts(msg chat.Message) []genai.Part {
	switch {
	case msg.Role == chat.RoleFunction:
		return []genai.Part{genai.FunctionResponse{
			Name:     msg.Name,
			Response: map[string]any{"result": msg.Content},
		}}
	case msg.FunctionCall != nil:
		var args map[string]any
		if err := json.Unmarshal([]byte(msg.FunctionCall.Arguments), &args); err != nil {
			args = map[string]any{"input": msg.FunctionCall.Arguments}
		}
		parts := []genai.Part{genai.FunctionCall{Name: msg.FunctionCall.Name, Args: args}}
		if msg.Content != "" {
			parts = append([]genai.Part{genai.Text(msg.Content)}, parts...)
		}
		return parts
	default:
		return []genai.Part{genai.Text(msg.Content)}
	}
}

// parseGeminiResponse keeps the text and the first function call.
func parseGeminiResponse(resp *genai.GenerateContentResponse) (*GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no content returned from Gemini")
	}

	var content strings.Builder
	result := &GenerationResult{}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			content.WriteString(string(v))
		case genai.FunctionCall:
			if result.FunctionCall == nil {
				result.FunctionCall = &function.Request{Name: v.Name, Arguments: v.Args}
			}
		}
	}
	result.Content = strings.TrimSpace(content.String())

	if resp.UsageMetadata != nil {
		result.Usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.Usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.Usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}
