package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dileep-u-k/function-gateway/internal/function"
)

// ToolExecutor is a builtin function that can be exposed as part of a
// manifest's module.
type ToolExecutor interface {
	// Definition returns the schema offered to the LLM.
	Definition() Tool

	// Execute runs the function with the decoded call arguments.
	Execute(ctx context.Context, args function.Arguments) (function.Output, error)
}

// ToolManager is a registry of builtin functions. It serves as the module a
// manifest exposes, so it implements function.Lookup.
type ToolManager struct {
	mu    sync.RWMutex
	tools map[string]ToolExecutor
}

var _ function.Lookup = (*ToolManager)(nil)

func NewToolManager() *ToolManager {
	return &ToolManager{
		tools: make(map[string]ToolExecutor),
	}
}

// NewDefaultToolManager registers every builtin function.
func NewDefaultToolManager() *ToolManager {
	tm := NewToolManager()
	tm.Register(NewCalculatorTool())
	tm.Register(NewWeatherTool())
	return tm
}

// Register adds a tool to the registry, replacing one with the same name.
func (tm *ToolManager) Register(tool ToolExecutor) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.tools[tool.Definition().Function.Name] = tool
}

// Lookup returns the named tool as a callable. Raw string arguments are
// bound to the tool's first required parameter.
func (tm *ToolManager) Lookup(name string) (function.Callable, bool) {
	tm.mu.RLock()
	tool, ok := tm.tools[name]
	tm.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return Func(tool), true
}

// Func adapts a tool to a function.Callable.
func Func(tool ToolExecutor) function.Callable {
	return function.CallableFunc(func(ctx context.Context, args function.Arguments) (function.Output, error) {
		return tool.Execute(ctx, bindPositional(tool.Definition().Function.Parameters, args))
	})
}

// bindPositional turns a raw string into {first required parameter: raw}.
// Numbers and booleans are parsed when the parameter asks for them.
func bindPositional(schema JSONSchema, args function.Arguments) function.Arguments {
	raw, ok := args.Raw()
	if !ok || len(schema.Required) == 0 {
		return args
	}
	name := schema.Required[0]
	var value any = raw
	if prop := schema.Properties[name]; prop != nil {
		switch prop.Type {
		case "number", "integer":
			if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				value = f
			}
		case "boolean":
			if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
				value = b
			}
		}
	}
	return function.MapArguments(map[string]any{name: value})
}

// Subset returns a registry holding only the named tools. Unknown names are
// reported as an error.
func (tm *ToolManager) Subset(names []string) (*ToolManager, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	sub := NewToolManager()
	for _, name := range names {
		tool, ok := tm.tools[name]
		if !ok {
			return nil, fmt.Errorf("tool '%s' not found", name)
		}
		sub.tools[name] = tool
	}
	return sub, nil
}

// GetDefinitions returns all tool definitions sorted by name.
func (tm *ToolManager) GetDefinitions() []Tool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	defs := make([]Tool, 0, len(tm.tools))
	for _, tool := range tm.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Function.Name < defs[j].Function.Name })
	return defs
}

// ToolCount returns the number of registered tools.
func (tm *ToolManager) ToolCount() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.tools)
}

// bindArguments decodes structured call arguments into v.
func bindArguments(args function.Arguments, v any) error {
	fields, ok := args.Map()
	if !ok {
		return fmt.Errorf("expected an object of arguments, got %q", args.String())
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
