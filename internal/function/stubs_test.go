package function

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// --- test stubs ---

type stubManifest struct {
	actions    map[string]Action
	notebook   bool
	module     map[string]Callable
	hasModule  bool
	resultForm string
	skip       bool
	repair     bool
	baseDir    string
}

func (m *stubManifest) Actions() map[string]Action { return m.actions }
func (m *stubManifest) Notebook() bool             { return m.notebook }
func (m *stubManifest) HasModule() bool            { return m.hasModule }
func (m *stubManifest) Module(name string) (Callable, bool) {
	fn, ok := m.module[name]
	return fn, ok
}
func (m *stubManifest) ResultForm() string       { return m.resultForm }
func (m *stubManifest) SkipFunctionResult() bool { return m.skip }
func (m *stubManifest) RepairArguments() bool    { return m.repair }
func (m *stubManifest) BaseDir() string          { return m.baseDir }

type stubAction struct {
	message    string
	emit       bool
	calls      int
	gotArgs    Arguments
	gotBaseDir string
}

func (a *stubAction) CallAPI(_ context.Context, args Arguments, baseDir string, _ bool) string {
	a.calls++
	a.gotArgs = args
	a.gotBaseDir = baseDir
	return a.message
}
func (a *stubAction) HasEmit() bool { return a.emit }
func (a *stubAction) EmitData(args Arguments) any {
	m, _ := args.Map()
	return map[string]any{"emitted": m}
}
func (a *stubAction) EmitMethod() string { return "switch_session" }

type stubLookup struct {
	funcs   map[string]Callable
	lookups int
}

func (l *stubLookup) Lookup(name string) (Callable, bool) {
	l.lookups++
	fn, ok := l.funcs[name]
	return fn, ok
}

type recordingReporter struct {
	warnings []string
	errors   []string
	code     []string
}

func (r *recordingReporter) Warn(msg string)  { r.warnings = append(r.warnings, msg) }
func (r *recordingReporter) Error(msg string) { r.errors = append(r.errors, msg) }
func (r *recordingReporter) Code(code string) { r.code = append(r.code, code) }

type observation struct {
	source, outcome string
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveDispatch(source, outcome string, _ time.Duration) {
	o.seen = append(o.seen, observation{source, outcome})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingCallable returns a fixed output and remembers its arguments.
func recordingCallable(out Output, err error, got *Arguments) Callable {
	return CallableFunc(func(_ context.Context, args Arguments) (Output, error) {
		if got != nil {
			*got = args
		}
		return out, err
	})
}
