// Package session runs a chat turn: call the LLM, dispatch the function it
// asks for, and call the LLM again with the result until it answers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dileep-u-k/function-gateway/internal/chat"
	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/llm"
	"github.com/dileep-u-k/function-gateway/internal/manifest"
	"github.com/dileep-u-k/function-gateway/internal/metrics"
	"github.com/dileep-u-k/function-gateway/internal/sandbox"
	"github.com/dileep-u-k/function-gateway/internal/tools"
)

// Event kinds passed to a Callback.
const (
	EventBot      = "bot"
	EventFunction = "function"
	EventEmit     = "emit"
	EventError    = "error"
)

// ErrTooManyFunctionCalls is returned when the LLM keeps calling functions
// past the manifest's bound.
var ErrTooManyFunctionCalls = errors.New("exceeded maximum number of function calls")

// Event is one observable step of a turn.
type Event struct {
	Kind     string `json:"kind"`
	Content  string `json:"content,omitempty"`
	Function string `json:"function,omitempty"`
	Method   string `json:"method,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// Callback receives the events of a turn in order.
type Callback func(Event)

// Option configures a Session.
type Option func(*Session)

// WithSandbox attaches the conversation's notebook from rt. A nil runtime
// leaves the session without a sandbox.
func WithSandbox(rt *sandbox.Runtime) Option {
	return func(s *Session) {
		if rt != nil {
			s.sandbox = rt.Notebook(s.conv.ID())
			s.sandboxDef = rt.Definition().Function
			s.hasSandbox = true
		}
	}
}

// WithModel overrides the manifest's model.
func WithModel(model string) Option {
	return func(s *Session) {
		if model != "" {
			s.model = model
		}
	}
}

// WithMetrics records dispatches and generations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReporter sets where dispatch diagnostics are printed.
func WithReporter(r function.Reporter) Option {
	return func(s *Session) { s.reporter = r }
}

// WithVerbose makes declared actions log their requests.
func WithVerbose(v bool) Option {
	return func(s *Session) { s.verbose = v }
}

// Session binds a manifest, a provider client and a conversation.
type Session struct {
	manifest *manifest.Manifest
	client   llm.LLMClient
	conv     *chat.Context
	model    string

	sandbox    function.Lookup
	sandboxDef tools.Function
	hasSandbox bool

	metrics  *metrics.Metrics
	logger   *slog.Logger
	reporter function.Reporter
	verbose  bool

	usage llm.Usage
}

// New creates a session. When the conversation is empty the manifest's
// prompt is added as the system message.
func New(m *manifest.Manifest, client llm.LLMClient, conv *chat.Context, opts ...Option) *Session {
	s := &Session{
		manifest: m,
		client:   client,
		conv:     conv,
		model:    m.Model(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if conv.Len() == 0 && m.Prompt() != "" {
		conv.AppendMessage(chat.Message{Role: chat.RoleSystem, Content: m.Prompt()})
	}
	return s
}

// Context returns the conversation.
func (s *Session) Context() *chat.Context { return s.conv }

// Usage returns the tokens consumed by this session so far.
func (s *Session) Usage() llm.Usage { return s.usage }

// AppendUserQuestion adds the user's next message.
func (s *Session) AppendUserQuestion(q string) {
	s.conv.AppendUserQuestion(q)
}

// functions is what the LLM is offered.
func (s *Session) functions() []tools.Function {
	defs := s.manifest.FunctionDefinitions()
	if s.hasSandbox && s.manifest.Notebook() {
		defs = append(defs, s.sandboxDef)
	}
	return defs
}

// CallLLM sends the conversation to the provider and appends its answer. It
// returns the text and the requested function call, if any.
func (s *Session) CallLLM(ctx context.Context) (string, *function.Request, error) {
	cfg := &llm.GenerationConfig{Model: s.model, Temperature: s.manifest.Temperature()}
	res, err := s.client.Generate(ctx, s.conv.Messages(), cfg, s.functions())
	if err != nil {
		s.metrics.ObserveGeneration(s.model, 0, 0, err)
		return "", nil, fmt.Errorf("LLM generation failed for model %s: %w", s.model, err)
	}
	s.metrics.ObserveGeneration(s.model, res.Usage.PromptTokens, res.Usage.CompletionTokens, nil)
	s.usage.Add(res.Usage)

	msg := chat.Message{Role: chat.RoleAssistant, Content: res.Content}
	if res.FunctionCall != nil {
		msg.FunctionCall = &chat.FunctionCall{
			Name:      res.FunctionCall.Name,
			Arguments: argumentsText(res.FunctionCall.Arguments),
		}
	}
	if msg.Content != "" || msg.FunctionCall != nil {
		s.conv.AppendMessage(msg)
	}
	return res.Content, res.FunctionCall, nil
}

// CallLoop runs one turn. It stops when the LLM answers without a function
// call, when a function result should not go back to the LLM, or after the
// manifest's maximum number of function calls.
func (s *Session) CallLoop(ctx context.Context, callback Callback) error {
	if callback == nil {
		callback = func(Event) {}
	}
	for i := 0; i < s.manifest.MaxFunctionCalls(); i++ {
		prompt := s.conv.LastMessage()
		content, req, err := s.CallLLM(ctx)
		if err != nil {
			callback(Event{Kind: EventError, Content: err.Error()})
			return err
		}
		if content != "" {
			callback(Event{Kind: EventBot, Content: content})
		}

		call := function.NewCall(req, s.manifest, s.callOptions()...)
		if call == nil {
			return nil
		}
		s.logger.Info("dispatching function call", slog.String("call", call.String()))

		if data, method := call.EmitData(); method != "" {
			callback(Event{Kind: EventEmit, Function: call.Name(), Method: method, Data: data})
		}

		out, err := call.Process(ctx, answering{Context: s.conv, prompt: prompt}, s.sandbox)
		if err != nil {
			callback(Event{Kind: EventError, Function: call.Name(), Content: err.Error()})
			return err
		}
		if out.Message != "" {
			callback(Event{Kind: EventFunction, Function: out.FunctionName, Content: out.Message})
		}
		if !out.CallLLM {
			return nil
		}
	}
	callback(Event{Kind: EventError, Content: ErrTooManyFunctionCalls.Error()})
	return ErrTooManyFunctionCalls
}

func (s *Session) callOptions() []function.Option {
	opts := []function.Option{function.WithLogger(s.logger), function.WithVerbose(s.verbose)}
	if s.reporter != nil {
		opts = append(opts, function.WithReporter(s.reporter))
	}
	if s.metrics != nil {
		opts = append(opts, function.WithObserver(s.metrics))
	}
	return opts
}

// answering presents the conversation to the dispatcher with the message
// the LLM was answering as the last one, not its own function call.
type answering struct {
	*chat.Context
	prompt chat.Message
}

func (a answering) LastMessage() chat.Message { return a.prompt }

// argumentsText renders provider arguments the way OpenAI transports them.
func argumentsText(args any) string {
	switch v := args.(type) {
	case nil:
		return "{}"
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
