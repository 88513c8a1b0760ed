package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dileep-u-k/function-gateway/internal/chat"
	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/tools"
)

// openAIRequest is the chat completions body using the functions API.
type openAIRequest struct {
	Model        string           `json:"model"`
	Messages     []openAIMessage  `json:"messages"`
	Functions    []tools.Function `json:"functions,omitempty"`
	FunctionCall string           `json:"function_call,omitempty"`
	MaxTokens    int              `json:"max_tokens,omitempty"`
	Temperature  *float32         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role         string              `json:"role"`
	Content      *string             `json:"content"`
	Name         string              `json:"name,omitempty"`
	FunctionCall *openAIFunctionCall `json:"function_call,omitempty"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

const openAIAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient talks to the OpenAI chat completions endpoint.
type OpenAIClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

var _ LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client for the OpenAI API.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key cannot be empty")
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		endpoint:   openAIAPIURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryDelay: initialRetryDelay,
		logger:     slog.Default(),
	}, nil
}

// WithEndpoint points the client at a compatible server.
func (c *OpenAIClient) WithEndpoint(endpoint string) *OpenAIClient {
	c.endpoint = endpoint
	return c
}

// WithRetryDelay sets the initial backoff between attempts.
func (c *OpenAIClient) WithRetryDelay(d time.Duration) *OpenAIClient {
	c.retryDelay = d
	return c
}

// Generate performs a blocking chat completion.
func (c *OpenAIClient) Generate(
	ctx context.Context,
	messages []chat.Message,
	config *GenerationConfig,
	functions []tools.Function,
) (*GenerationResult, error) {
	payload, err := buildOpenAIPayload(messages, config, functions)
	if err != nil {
		return nil, fmt.Errorf("failed to build openai request payload: %w", err)
	}
	respBody, err := c.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	return parseOpenAIResponse(respBody)
}

func buildOpenAIPayload(messages []chat.Message, config *GenerationConfig, functions []tools.Function) ([]byte, error) {
	if config == nil {
		config = &GenerationConfig{}
	}
	req := openAIRequest{
		Model:       config.Model,
		Messages:    toOpenAIMessages(messages),
		Functions:   functions,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
	}
	if len(functions) > 0 {
		req.FunctionCall = "auto"
	}
	return json.Marshal(req)
}

// doRequest posts the payload, retrying transport errors and 5xx responses
// with exponential backoff. 4xx responses are returned immediately.
func (c *OpenAIClient) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	return postWithRetry(ctx, c.httpClient, c.logger, "openai", c.retryDelay, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create http request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	})
}

func toOpenAIMessages(messages []chat.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		content := msg.Content
		m := openAIMessage{Role: string(msg.Role), Content: &content, Name: msg.Name}
		if msg.FunctionCall != nil {
			m.FunctionCall = &openAIFunctionCall{Name: msg.FunctionCall.Name, Arguments: msg.FunctionCall.Arguments}
			if content == "" {
				m.Content = nil
			}
		}
		out = append(out, m)
	}
	return out
}

func parseOpenAIResponse(body []byte) (*GenerationResult, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned from OpenAI")
	}

	msg := resp.Choices[0].Message
	result := &GenerationResult{Usage: resp.Usage}
	if msg.Content != nil {
		result.Content = *msg.Content
	}
	if msg.FunctionCall != nil {
		result.FunctionCall = &function.Request{
			Name:      msg.FunctionCall.Name,
			Arguments: msg.FunctionCall.Arguments,
		}
	}
	return result, nil
}
