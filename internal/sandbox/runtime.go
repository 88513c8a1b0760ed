// Package sandbox is the notebook runtime: Python cells executed in a
// container, with the variables of earlier cells still defined.
package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/tools"
)

const (
	// RunPythonCode is the function the runtime exposes.
	RunPythonCode = "run_python_code"

	// pythonAlias is the name models use when they call code execution
	// without it being offered.
	pythonAlias = "python"

	maxOutput = 50 * 1024

	maxNotebooks = 256
)

// Runtime is a Python kernel shared by many conversations. Each
// conversation gets its own Notebook so cells never leak between them;
// the least recently used notebooks are forgotten once maxNotebooks is
// reached.
type Runtime struct {
	exec   Executor
	logger *slog.Logger

	mu        sync.Mutex
	notebooks *lru.Cache[string, *Notebook]
}

// NewRuntime creates a runtime on top of exec.
func NewRuntime(exec Executor, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	// lru.New only fails on a non-positive size.
	notebooks, _ := lru.New[string, *Notebook](maxNotebooks)
	return &Runtime{exec: exec, logger: logger, notebooks: notebooks}
}

// Notebook returns the notebook of a conversation, creating it on first use.
func (r *Runtime) Notebook(conversationID string) *Notebook {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nb, ok := r.notebooks.Get(conversationID); ok {
		return nb
	}
	nb := &Notebook{runtime: r, id: conversationID}
	r.notebooks.Add(conversationID, nb)
	return nb
}

// Notebooks returns the number of live notebooks.
func (r *Runtime) Notebooks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notebooks.Len()
}

// Definition describes run_python_code to the LLM.
func (r *Runtime) Definition() tools.Tool {
	return tools.NewFunctionTool(
		RunPythonCode,
		"Run Python code in a notebook. Variables from earlier calls are kept.",
		tools.JSONSchema{
			Type: "object",
			Properties: map[string]*tools.JSONSchema{
				"code": {
					Type:        "string",
					Description: "The Python code to run.",
				},
				"query": {
					Type:        "string",
					Description: "The user question the code answers.",
				},
			},
			Required: []string{"code"},
		},
	)
}

// Notebook is the cell history of one conversation. Every successful cell
// is kept and replayed silently before the next one, so definitions
// persist across calls. It implements function.Lookup.
type Notebook struct {
	runtime *Runtime
	id      string

	mu    sync.Mutex
	cells []string
}

var _ function.Lookup = (*Notebook)(nil)

// Lookup resolves run_python_code and its "python" alias.
func (nb *Notebook) Lookup(name string) (function.Callable, bool) {
	switch name {
	case RunPythonCode, pythonAlias:
		return function.CallableFunc(nb.Run), true
	}
	return nil, false
}

// Run executes a raw code string or the `code` argument. Python errors are
// returned as the result text; only a failure to reach the sandbox is an
// error.
func (nb *Notebook) Run(ctx context.Context, args function.Arguments) (function.Output, error) {
	code, ok := args.Raw()
	if !ok || strings.TrimSpace(code) == "" {
		code, ok = args.Code()
	}
	if !ok {
		return function.Output{Result: function.TextResult("Error: no code to run.")}, nil
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()

	script, err := buildScript(nb.cells, code)
	if err != nil {
		return function.Output{}, err
	}
	res, err := nb.runtime.exec.Exec(ctx, []string{"python3", "-c", script})
	if err != nil {
		return function.Output{}, fmt.Errorf("sandbox exec failed: %w", err)
	}

	nb.runtime.logger.Info("notebook cell executed",
		slog.String("conversation", nb.id),
		slog.Int("cell", len(nb.cells)+1),
		slog.Int("exit_code", res.ExitCode))

	if res.ExitCode != 0 {
		return function.Output{Result: function.TextResult(
			fmt.Sprintf("Error (exit code %d):\n%s", res.ExitCode, truncate(strings.TrimSpace(res.Stderr))),
		)}, nil
	}
	nb.cells = append(nb.cells, code)
	return function.Output{Result: function.TextResult(truncate(strings.TrimRight(res.Stdout, "\n")))}, nil
}

// Reset forgets every executed cell.
func (nb *Notebook) Reset() {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.cells = nil
}

// Cells returns the number of cells that ran successfully.
func (nb *Notebook) Cells() int {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	return len(nb.cells)
}

const scriptTemplate = `import base64, contextlib, io, json
_cells = json.loads(base64.b64decode("%s").decode("utf-8"))
_ns = {"__name__": "__main__"}
with contextlib.redirect_stdout(io.StringIO()):
    for _c in _cells[:-1]:
        exec(compile(_c, "<history>", "exec"), _ns)
exec(compile(_cells[-1], "<cell>", "exec"), _ns)
`

// buildScript encodes the history and the new cell into one python3 -c
// program.
func buildScript(history []string, cell string) (string, error) {
	cells := make([]string, 0, len(history)+1)
	cells = append(cells, history...)
	cells = append(cells, cell)
	b, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("failed to encode cells: %w", err)
	}
	return fmt.Sprintf(scriptTemplate, base64.StdEncoding.EncodeToString(b)), nil
}

// truncate cuts s at maxOutput bytes without splitting a UTF-8 sequence.
func truncate(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	cut := maxOutput
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated at 50KB)"
}
