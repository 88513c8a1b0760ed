// Package action implements the function behaviors a manifest can declare
// instead of relying on a local callable: REST calls, message templates,
// data URLs and emitted events.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dileep-u-k/function-gateway/internal/cache"
	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/version"
)

// Supported action types.
const (
	TypeREST            = "rest"
	TypeMessageTemplate = "message_template"
	TypeDataURL         = "data_url"
	TypeEmit            = "emit"
)

// Spec is the manifest entry of one declared action.
type Spec struct {
	Type       string            `yaml:"type" json:"type"`
	URL        string            `yaml:"url,omitempty" json:"url,omitempty"`
	Method     string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	AppKey     string            `yaml:"appkey,omitempty" json:"appkey,omitempty"`
	Message    string            `yaml:"message,omitempty" json:"message,omitempty"`
	File       string            `yaml:"file,omitempty" json:"file,omitempty"`
	MimeType   string            `yaml:"mime_type,omitempty" json:"mime_type,omitempty"`
	EmitMethod string            `yaml:"emit_method,omitempty" json:"emit_method,omitempty"`
	EmitData   map[string]any    `yaml:"emit_data,omitempty" json:"emit_data,omitempty"`
	Cache      bool              `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// Option configures an Action.
type Option func(*Action)

// WithHTTPClient sets the client used by rest actions.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Action) {
		if c != nil {
			a.httpClient = c
		}
	}
}

// WithCache enables result caching for actions that ask for it.
func WithCache(s cache.Store) Option {
	return func(a *Action) { a.cache = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Action) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithGetenv replaces os.Getenv for appkey lookups.
func WithGetenv(fn func(string) string) Option {
	return func(a *Action) {
		if fn != nil {
			a.getenv = fn
		}
	}
}

// WithRetryDelay sets the initial backoff of rest retries.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Action) {
		if d > 0 {
			a.retryDelay = d
		}
	}
}

// Action is an executable declared action.
type Action struct {
	name string
	spec Spec

	httpClient *http.Client
	cache      cache.Store
	logger     *slog.Logger
	getenv     func(string) string
	retryDelay time.Duration
}

var _ function.Action = (*Action)(nil)

// New validates spec and builds the action for the function called name.
func New(name string, spec Spec, opts ...Option) (*Action, error) {
	switch spec.Type {
	case TypeREST, TypeDataURL:
		if spec.URL == "" {
			return nil, fmt.Errorf("action %s: type %s requires url", name, spec.Type)
		}
	case TypeMessageTemplate:
		if spec.Message == "" && spec.File == "" {
			return nil, fmt.Errorf("action %s: message_template requires message or file", name)
		}
	case TypeEmit:
		if spec.EmitMethod == "" {
			return nil, fmt.Errorf("action %s: emit requires emit_method", name)
		}
	default:
		return nil, fmt.Errorf("action %s: unknown type %q", name, spec.Type)
	}

	a := &Action{
		name:       name,
		spec:       spec,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		getenv:     os.Getenv,
		retryDelay: initialRetryDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the function name the action is declared for.
func (a *Action) Name() string { return a.name }

// Type returns the action type.
func (a *Action) Type() string { return a.spec.Type }

// CallAPI executes the action and returns the function message. Failures
// become the message so the LLM can see them.
func (a *Action) CallAPI(ctx context.Context, args function.Arguments, baseDir string, verbose bool) string {
	var key string
	if a.spec.Cache && a.cache != nil {
		key = version.GenerateVersionedCacheKey(cache.KeyPrefix, a.name+":"+args.String())
		if msg, ok := a.cache.Get(ctx, key); ok {
			a.logger.Info("action cache hit", slog.String("function", a.name))
			return msg
		}
	}

	msg, err := a.execute(ctx, args, baseDir, verbose)
	if err != nil {
		a.logger.Error("action failed",
			slog.String("function", a.name),
			slog.String("type", a.spec.Type),
			slog.Any("error", err))
		return fmt.Sprintf("Error: %v", err)
	}

	if key != "" && msg != "" {
		a.cache.Set(ctx, key, msg)
	}
	return msg
}

func (a *Action) execute(ctx context.Context, args function.Arguments, baseDir string, verbose bool) (string, error) {
	switch a.spec.Type {
	case TypeREST:
		return a.callREST(ctx, args, verbose)
	case TypeMessageTemplate:
		tmpl, err := a.template(baseDir)
		if err != nil {
			return "", err
		}
		return render(tmpl, args, nil, nil), nil
	case TypeDataURL:
		u := render(a.spec.URL, args, a.appKeyValues(), queryEscape)
		if a.spec.MimeType != "" {
			return fmt.Sprintf("URL: %s (%s)", u, a.spec.MimeType), nil
		}
		return "URL: " + u, nil
	case TypeEmit:
		return render(a.spec.Message, args, nil, nil), nil
	}
	return "", fmt.Errorf("unknown action type %q", a.spec.Type)
}

// template returns the inline message or the contents of the referenced
// file. Relative paths are resolved against the manifest directory.
func (a *Action) template(baseDir string) (string, error) {
	if a.spec.File == "" {
		return a.spec.Message, nil
	}
	path := a.spec.File
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", a.spec.File, err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

// HasEmit reports whether the action produces an event for the caller.
func (a *Action) HasEmit() bool { return a.spec.Type == TypeEmit }

// EmitData renders the emit payload with the call arguments.
func (a *Action) EmitData(args function.Arguments) any {
	if !a.HasEmit() {
		return nil
	}
	data, _ := renderValue(a.spec.EmitData, args).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return data
}

// EmitMethod names the event kind.
func (a *Action) EmitMethod() string {
	if !a.HasEmit() {
		return ""
	}
	return a.spec.EmitMethod
}

func (a *Action) appKeyValues() map[string]string {
	if a.spec.AppKey == "" {
		return nil
	}
	return map[string]string{"appkey": a.getenv(a.spec.AppKey)}
}
