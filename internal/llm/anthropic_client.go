package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dileep-u-k/function-gateway/internal/chat"
	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/tools"
)

const (
	anthropicAPIURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// --- API Data Structures ---

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema tools.JSONSchema `json:"input_schema"`
}

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   anthropicUsage          `json:"usage"`
}

// --- Main Client ---

// AnthropicClient talks to the Anthropic messages API. Function calls are
// sent as tool_use blocks and their results as tool_result blocks.
type AnthropicClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ LLMClient = (*AnthropicClient)(nil)

func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key cannot be empty")
	}
	return &AnthropicClient{
		apiKey:     apiKey,
		endpoint:   anthropicAPIURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryDelay: initialRetryDelay,
		logger:     slog.Default(),
	}, nil
}

// WithEndpoint points the client at a compatible server.
func (c *AnthropicClient) WithEndpoint(endpoint string) *AnthropicClient {
	c.endpoint = endpoint
	return c
}

// WithRetryDelay sets the initial backoff between attempts.
func (c *AnthropicClient) WithRetryDelay(d time.Duration) *AnthropicClient {
	c.retryDelay = d
	return c
}

func (c *AnthropicClient) Generate(
	ctx context.Context,
	messages []chat.Message,
	config *GenerationConfig,
	functions []tools.Function,
) (*GenerationResult, error) {
	payload, err := buildAnthropicPayload(messages, config, functions)
	if err != nil {
		return nil, fmt.Errorf("failed to build anthropic request payload: %w", err)
	}
	respBody, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	return parseAnthropicResponse(respBody)
}

// --- Helper Functions ---

func buildAnthropicPayload(messages []chat.Message, config *GenerationConfig, functions []tools.Function) ([]byte, error) {
	if config == nil {
		config = &GenerationConfig{}
	}
	system, anthropicMsgs, err := toAnthropicMessages(messages)
	if err != nil {
		return nil, err
	}

	req := anthropicRequest{
		Model:       config.Model,
		Messages:    anthropicMsgs,
		System:      system,
		Tools:       toAnthropicTools(functions),
		MaxTokens:   defaultMaxTokens,
		Temperature: config.Temperature,
	}
	if config.MaxTokens > 0 {
		req.MaxTokens = config.MaxTokens
	}
	return json.Marshal(req)
}

// toAnthropicMessages converts the history. The conversation does not keep
// tool-use ids, so each function call gets one from its position and the
// next function message answers it. Consecutive messages of the same role
// are merged into one message because the API requires alternating roles.
func toAnthropicMessages(messages []chat.Message) (string, []anthropicMessage, error) {
	var (
		system  []string
		out     []anthropicMessage
		pending string
	)
	add := func(role string, block anthropicContentBlock) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, block)
			return
		}
		out = append(out, anthropicMessage{Role: role, Content: []anthropicContentBlock{block}})
	}

	for i, msg := range messages {
		switch {
		case msg.Role == chat.RoleSystem:
			system = append(system, msg.Content)
		case msg.Role == chat.RoleFunction:
			if pending == "" {
				add("user", anthropicContentBlock{Type: "text", Text: fmt.Sprintf("%s returned: %s", msg.Name, msg.Content)})
				continue
			}
			add("user", anthropicContentBlock{Type: "tool_result", ToolUseID: pending, Content: msg.Content})
			pending = ""
		case msg.FunctionCall != nil:
			if msg.Content != "" {
				add("assistant", anthropicContentBlock{Type: "text", Text: msg.Content})
			}
			input, err := toolInput(msg.FunctionCall.Arguments)
			if err != nil {
				return "", nil, err
			}
			pending = fmt.Sprintf("toolu_%d", i)
			add("assistant", anthropicContentBlock{Type: "tool_use", ID: pending, Name: msg.FunctionCall.Name, Input: input})
		default:
			if msg.Content == "" {
				continue
			}
			role := "user"
			if msg.Role == chat.RoleAssistant {
				role = "assistant"
			}
			add(role, anthropicContentBlock{Type: "text", Text: msg.Content})
		}
	}
	return strings.Join(system, "\n\n"), out, nil
}

// toolInput returns the call arguments as a JSON object. Anything else is
// wrapped as {"input": raw}.
func toolInput(arguments string) (json.RawMessage, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(arguments), &obj); err == nil && obj != nil {
		return json.RawMessage(arguments), nil
	}
	b, err := json.Marshal(map[string]string{"input": arguments})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool input: %w", err)
	}
	return b, nil
}

func toAnthropicTools(functions []tools.Function) []anthropicTool {
	if len(functions) == 0 {
		return nil
	}
	out := make([]anthropicTool, 0, len(functions))
	for _, fn := range functions {
		schema := fn.Parameters
		if schema.Type == "" {
			schema.Type = "object"
		}
		out = append(out, anthropicTool{Name: fn.Name, Description: fn.Description, InputSchema: schema})
	}
	return out
}

// parseAnthropicResponse keeps the text and the first tool_use block.
func parseAnthropicResponse(body []byte) (*GenerationResult, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anthropic response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, errors.New("no content returned from Anthropic")
	}

	var content strings.Builder
	result := &GenerationResult{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			if result.FunctionCall == nil {
				result.FunctionCall = &function.Request{Name: block.Name, Arguments: string(block.Input)}
			}
		}
	}
	result.Content = strings.TrimSpace(content.String())
	result.Usage = Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return result, nil
}

func (c *AnthropicClient) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	return postWithRetry(ctx, c.httpClient, c.logger, "anthropic", c.retryDelay, func() (*http.Request, error) {
		return c.createRequest(ctx, bytes.NewReader(payload))
	})
}

func (c *AnthropicClient) createRequest(ctx context.Context, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")
	return req, nil
}
