// Package function dispatches function calls emitted by an LLM: it decodes
// the arguments, resolves the name to a declared action or a dynamic
// callable, invokes it, formats the result and appends it to the
// conversation.
package function

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dileep-u-k/function-gateway/internal/chat"
	"github.com/dileep-u-k/function-gateway/internal/console"
)

// notebookFunctionName is the name some models use for a code-execution call
// even when no such function was offered.
const notebookFunctionName = "python"

// Manifest is the read-only configuration a call is processed against.
type Manifest interface {
	// Actions returns the declared actions keyed by function name.
	Actions() map[string]Action
	// Notebook reports whether calls may be routed to a sandbox.
	Notebook() bool
	// HasModule reports whether the manifest exposes a module of functions.
	HasModule() bool
	// Module looks a function up in the exposed module.
	Module(name string) (Callable, bool)
	// ResultForm is an optional template with a {result} placeholder.
	ResultForm() string
	// SkipFunctionResult suppresses the follow-up LLM call.
	SkipFunctionResult() bool
	// RepairArguments enables jsonrepair on malformed argument strings.
	RepairArguments() bool
	// BaseDir resolves relative resources of declared actions.
	BaseDir() string
}

// Conversation is the context a call reads from and appends to.
type Conversation interface {
	LastMessage() chat.Message
	AppendMessage(m chat.Message)
}

// Action is a function behavior declared in the manifest.
type Action interface {
	// CallAPI executes the action and returns the function message. Failures
	// are reported inside the message; "" means there is nothing to add.
	CallAPI(ctx context.Context, args Arguments, baseDir string, verbose bool) string
	HasEmit() bool
	EmitData(args Arguments) any
	EmitMethod() string
}

// Reporter receives operator console diagnostics.
type Reporter interface {
	Warn(msg string)
	Error(msg string)
	Code(code string)
}

// Observer is notified once per processed call.
type Observer interface {
	ObserveDispatch(source string, outcome string, elapsed time.Duration)
}

// Dispatch outcomes reported to an Observer.
const (
	OutcomeMessage = "message"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

// Option configures a Call.
type Option func(*Call)

// WithReporter sets where warnings, errors and echoed code are printed.
func WithReporter(r Reporter) Option {
	return func(c *Call) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Call) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers a dispatch observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *Call) { c.observer = o }
}

// WithVerbose is passed through to declared actions.
func WithVerbose(v bool) Option {
	return func(c *Call) { c.verbose = v }
}

// Call is one function call requested by the LLM, bound to its manifest.
// The declared action, if any, is resolved when the Call is created.
type Call struct {
	request  Request
	manifest Manifest
	declared Resolution

	reporter Reporter
	logger   *slog.Logger
	observer Observer
	verbose  bool
}

// NewCall binds a request to a manifest. It returns nil when there is no
// request, so callers can pass through an absent function call.
func NewCall(req *Request, m Manifest, opts ...Option) *Call {
	if req == nil {
		return nil
	}
	c := &Call{
		request:  *req,
		manifest: m,
		declared: resolveDeclared(req.Name, m),
		reporter: console.New(os.Stdout),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the requested function name.
func (c *Call) Name() string { return c.request.Name }

// Data returns the request as received.
func (c *Call) Data() Request { return c.request }

// Declared reports whether the manifest declares an action for this call.
func (c *Call) Declared() bool { return c.declared.Kind == ResolvedDeclared }

func (c *Call) String() string {
	args, err := DecodeArguments(c.request.Arguments)
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		args = decodeErr.Fallback()
	}
	return fmt.Sprintf("%s: (%s)", c.request.Name, args)
}

// EmitData returns the declared action's emit payload and method, or
// (nil, "") when the call has no emitting action.
func (c *Call) EmitData() (any, string) {
	if c.declared.Kind != ResolvedDeclared || !c.declared.Action.HasEmit() {
		return nil, ""
	}
	args := c.decodedArguments()
	return c.declared.Action.EmitData(args), c.declared.Action.EmitMethod()
}

// Process executes the call against the conversation. sandbox may be nil.
// The only error that is not recovered locally is a sandbox that lacks the
// requested function; callable errors are returned as well.
func (c *Call) Process(ctx context.Context, conv Conversation, sandbox Lookup) (Outcome, error) {
	name := c.request.Name
	if name == "" {
		return Outcome{}, nil
	}
	start := time.Now()

	args := c.arguments(conv.LastMessage())

	var (
		message string
		source  = c.declared.Source
	)
	if c.declared.Kind == ResolvedDeclared {
		c.logger.Info("calling declared action", slog.String("function", name))
		message = c.declared.Action.CallAPI(ctx, args, c.manifest.BaseDir(), c.verbose)
	} else {
		res, err := resolveDynamic(name, c.manifest, sandbox)
		if err != nil {
			c.observe(sourceSandbox, OutcomeError, start)
			return Outcome{}, err
		}
		source = res.Source
		if res.Kind == ResolvedDynamic {
			msg, err := c.invoke(ctx, res, args, conv)
			if err != nil {
				c.observe(source, OutcomeError, start)
				return Outcome{}, err
			}
			message = msg
		} else {
			c.reporter.Error(fmt.Sprintf("No execution for function %s", name))
			c.logger.Error("no execution for function", slog.String("function", name))
		}
	}

	if message != "" {
		conv.AppendMessage(chat.Message{Role: chat.RoleFunction, Content: message, Name: name})
	}

	outcome := Outcome{
		Message:      message,
		FunctionName: name,
		CallLLM:      message != "" && !c.manifest.SkipFunctionResult(),
	}
	if message != "" {
		c.observe(source, OutcomeMessage, start)
	} else {
		c.observe(source, OutcomeEmpty, start)
	}
	return outcome, nil
}

// invoke runs a dynamic callable, appends its side message and formats the
// result.
func (c *Call) invoke(ctx context.Context, res Resolution, args Arguments, conv Conversation) (string, error) {
	if code, ok := args.Code(); ok {
		c.reporter.Code(code)
	}
	c.logger.Info("calling function",
		slog.String("function", c.request.Name),
		slog.String("source", res.Source))

	out, err := res.Callable.Call(ctx, args)
	if err != nil {
		return "", fmt.Errorf("function %s failed: %w", c.request.Name, err)
	}
	if out.Message != "" {
		conv.AppendMessage(chat.Message{Role: chat.RoleAssistant, Content: out.Message})
	}
	return FormatResult(out.Result, c.manifest.ResultForm()), nil
}

// arguments decodes the request arguments for processing, including the
// notebook compatibility rule for calls named "python".
func (c *Call) arguments(last chat.Message) Arguments {
	args, err := DecodeArguments(c.request.Arguments)
	if err == nil {
		if c.isNotebookPython(args) {
			raw, _ := args.Raw()
			return c.notebookArguments(raw, last)
		}
		return args
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) && c.isNotebookPython(decodeErr.Fallback()) {
		return c.notebookArguments(decodeErr.Raw, last)
	}
	return c.recoverArguments(err)
}

// decodedArguments decodes without the notebook rule.
func (c *Call) decodedArguments() Arguments {
	args, err := DecodeArguments(c.request.Arguments)
	if err == nil {
		return args
	}
	return c.recoverArguments(err)
}

// recoverArguments applies the fallback policy to a failed decode: try a
// repair when the manifest allows it, otherwise warn and keep the raw text.
func (c *Call) recoverArguments(err error) Arguments {
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		return RawArguments("")
	}
	if c.manifest.RepairArguments() {
		if repaired, ok := repairArguments(decodeErr.Raw); ok {
			c.reporter.Warn(fmt.Sprintf("Function %s: Repaired malformed json arguments", c.request.Name))
			return repaired
		}
	}
	c.reporter.Warn(fmt.Sprintf("Function %s: Failed to load arguments as json", c.request.Name))
	c.logger.Warn("failed to decode function arguments",
		slog.String("function", c.request.Name),
		slog.Any("error", decodeErr.Err))
	return decodeErr.Fallback()
}

func (c *Call) isNotebookPython(args Arguments) bool {
	return c.manifest.Notebook() && c.request.Name == notebookFunctionName && !args.IsMap()
}

func (c *Call) notebookArguments(raw string, last chat.Message) Arguments {
	c.reporter.Warn("python function was called")
	return MapArguments(map[string]any{
		"code":  raw,
		"query": last.Content,
	})
}

func (c *Call) observe(source, outcome string, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveDispatch(source, outcome, time.Since(start))
}
