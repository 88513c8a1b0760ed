// Package manifest loads the YAML files that configure a chat session: the
// prompt, the functions offered to the LLM, the declared actions and the
// flags the function dispatcher reads.
package manifest

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dileep-u-k/function-gateway/internal/action"
	"github.com/dileep-u-k/function-gateway/internal/cache"
	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/tools"
)

// DefaultMaxFunctionCalls bounds the LLM/function round trips of one turn.
const DefaultMaxFunctionCalls = 5

// File is the on-disk layout of a manifest.
type File struct {
	Title              string                 `yaml:"title"`
	About              string                 `yaml:"about,omitempty"`
	Model              string                 `yaml:"model,omitempty"`
	Temperature        *float32               `yaml:"temperature,omitempty"`
	Prompt             string                 `yaml:"prompt"`
	Notebook           bool                   `yaml:"notebook,omitempty"`
	Module             []string               `yaml:"module,omitempty"`
	ResultForm         string                 `yaml:"result_form,omitempty"`
	SkipFunctionResult bool                   `yaml:"skip_function_result,omitempty"`
	RepairArguments    bool                   `yaml:"repair_arguments,omitempty"`
	MaxFunctionCalls   int                    `yaml:"max_function_calls,omitempty"`
	Functions          []tools.Function       `yaml:"functions,omitempty"`
	Actions            map[string]action.Spec `yaml:"actions,omitempty"`
}

// Option configures how a manifest is loaded.
type Option func(*loader)

type loader struct {
	registry   *tools.ToolManager
	cache      cache.Store
	httpClient *http.Client
	logger     *slog.Logger
}

// WithRegistry supplies the builtin functions the `module` list is bound to.
func WithRegistry(r *tools.ToolManager) Option {
	return func(l *loader) { l.registry = r }
}

// WithActionCache enables caching for actions declared with `cache: true`.
func WithActionCache(s cache.Store) Option {
	return func(l *loader) { l.cache = s }
}

// WithHTTPClient sets the client used by rest actions.
func WithHTTPClient(c *http.Client) Option {
	return func(l *loader) { l.httpClient = c }
}

// WithLogger sets the structured logger handed to actions.
func WithLogger(lg *slog.Logger) Option {
	return func(l *loader) { l.logger = lg }
}

// Manifest is a loaded, immutable manifest. It implements function.Manifest.
type Manifest struct {
	file    File
	baseDir string
	actions map[string]function.Action
	module  *tools.ToolManager
}

var _ function.Manifest = (*Manifest)(nil)

// Load reads the manifest at path. Relative action files resolve against
// the manifest's directory.
func Load(path string, opts ...Option) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest directory: %w", err)
	}
	m, err := Parse(data, abs, opts...)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest from YAML.
func Parse(data []byte, baseDir string, opts ...Option) (*Manifest, error) {
	l := &loader{logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m := &Manifest{
		file:    f,
		baseDir: baseDir,
		actions: make(map[string]function.Action, len(f.Actions)),
	}

	actionOpts := []action.Option{action.WithLogger(l.logger), action.WithHTTPClient(l.httpClient)}
	if l.cache != nil {
		actionOpts = append(actionOpts, action.WithCache(l.cache))
	}
	for name, spec := range f.Actions {
		a, err := action.New(name, spec, actionOpts...)
		if err != nil {
			return nil, err
		}
		m.actions[name] = a
	}

	if len(f.Module) > 0 {
		if l.registry == nil {
			return nil, fmt.Errorf("manifest exposes a module but no function registry is configured")
		}
		sub, err := l.registry.Subset(f.Module)
		if err != nil {
			return nil, fmt.Errorf("failed to bind module: %w", err)
		}
		m.module = sub
	}
	return m, nil
}

// Title returns the manifest title.
func (m *Manifest) Title() string { return m.file.Title }

// Prompt returns the system prompt.
func (m *Manifest) Prompt() string { return m.file.Prompt }

// Model returns the preferred model, or "" for the gateway default.
func (m *Manifest) Model() string { return m.file.Model }

// Temperature returns the sampling temperature, if set.
func (m *Manifest) Temperature() *float32 { return m.file.Temperature }

// MaxFunctionCalls returns the per-turn bound on function round trips.
func (m *Manifest) MaxFunctionCalls() int {
	if m.file.MaxFunctionCalls > 0 {
		return m.file.MaxFunctionCalls
	}
	return DefaultMaxFunctionCalls
}

// FunctionDefinitions returns what the LLM is offered: the manifest's own
// `functions` followed by the module's definitions, without duplicates.
func (m *Manifest) FunctionDefinitions() []tools.Function {
	seen := make(map[string]bool)
	var defs []tools.Function
	for _, fn := range m.file.Functions {
		if seen[fn.Name] {
			continue
		}
		seen[fn.Name] = true
		defs = append(defs, fn)
	}
	if m.module != nil {
		for _, t := range m.module.GetDefinitions() {
			if seen[t.Function.Name] {
				continue
			}
			seen[t.Function.Name] = true
			defs = append(defs, t.Function)
		}
	}
	return defs
}

// ActionNames lists the declared actions, sorted.
func (m *Manifest) ActionNames() []string {
	names := make([]string, 0, len(m.actions))
	for name := range m.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manifest) Actions() map[string]function.Action { return m.actions }
func (m *Manifest) Notebook() bool                      { return m.file.Notebook }
func (m *Manifest) HasModule() bool                     { return m.module != nil }
func (m *Manifest) ResultForm() string                  { return m.file.ResultForm }
func (m *Manifest) SkipFunctionResult() bool            { return m.file.SkipFunctionResult }
func (m *Manifest) RepairArguments() bool               { return m.file.RepairArguments }
func (m *Manifest) BaseDir() string                     { return m.baseDir }

func (m *Manifest) Module(name string) (function.Callable, bool) {
	if m.module == nil {
		return nil, false
	}
	return m.module.Lookup(name)
}
