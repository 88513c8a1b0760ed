package function

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/function-gateway/internal/chat"
)

func newTestCall(req *Request, m Manifest, r *recordingReporter, extra ...Option) *Call {
	opts := append([]Option{WithReporter(r), WithLogger(discardLogger())}, extra...)
	return NewCall(req, m, opts...)
}

func TestNewCallWithoutRequestReturnsNil(t *testing.T) {
	assert.Nil(t, NewCall(nil, &stubManifest{}))
}

func TestProcessWithoutNameIsNoop(t *testing.T) {
	for _, args := range []any{nil, `{"a":1}`, "not json"} {
		rep := &recordingReporter{}
		conv := chat.NewContext("c", chat.Message{Role: chat.RoleUser, Content: "hi"})
		call := newTestCall(&Request{Arguments: args}, &stubManifest{hasModule: true}, rep)

		out, err := call.Process(context.Background(), conv, &stubLookup{})
		require.NoError(t, err)
		assert.Equal(t, Outcome{}, out)
		assert.Equal(t, 1, conv.Len(), "context must not be mutated")
		assert.Empty(t, rep.warnings)
	}
}

func TestProcessDeclaredActionScenario(t *testing.T) {
	action := &stubAction{message: "sunny"}
	moduleCalled := false
	m := &stubManifest{
		actions:    map[string]Action{"get_weather": action},
		resultForm: "Weather: {result}",
		hasModule:  true,
		module: map[string]Callable{"get_weather": CallableFunc(func(context.Context, Arguments) (Output, error) {
			moduleCalled = true
			return Output{}, nil
		})},
		baseDir: "/manifests",
	}
	sandbox := &stubLookup{}
	conv := chat.NewContext("c", chat.Message{Role: chat.RoleUser, Content: "weather in Paris?"})
	rep := &recordingReporter{}

	call := newTestCall(&Request{Name: "get_weather", Arguments: `{"location":"Paris"}`}, m, rep)
	require.True(t, call.Declared())

	out, err := call.Process(context.Background(), conv, sandbox)
	require.NoError(t, err)

	assert.Equal(t, Outcome{Message: "sunny", FunctionName: "get_weather", CallLLM: true}, out)
	assert.Equal(t, chat.Message{Role: chat.RoleFunction, Content: "sunny", Name: "get_weather"}, conv.LastMessage())
	assert.Equal(t, 2, conv.Len())

	assert.Equal(t, 1, action.calls)
	assert.Equal(t, "/manifests", action.gotBaseDir)
	got, _ := action.gotArgs.Map()
	assert.Equal(t, map[string]any{"location": "Paris"}, got)

	assert.False(t, moduleCalled, "declared actions must not fall through to dynamic resolution")
	assert.Zero(t, sandbox.lookups)
}

func TestProcessDeclaredActionEmptyMessage(t *testing.T) {
	m := &stubManifest{actions: map[string]Action{"noop": &stubAction{}}}
	conv := chat.NewContext("c")

	out, err := newTestCall(&Request{Name: "noop"}, m, &recordingReporter{}).Process(context.Background(), conv, nil)
	require.NoError(t, err)
	assert.Equal(t, Outcome{FunctionName: "noop"}, out)
	assert.Zero(t, conv.Len())
}

func TestProcessSkipFunctionResult(t *testing.T) {
	m := &stubManifest{actions: map[string]Action{"get_weather": &stubAction{message: "sunny"}}, skip: true}
	conv := chat.NewContext("c")

	out, err := newTestCall(&Request{Name: "get_weather", Arguments: `{}`}, m, &recordingReporter{}).Process(context.Background(), conv, nil)
	require.NoError(t, err)
	assert.Equal(t, "sunny", out.Message)
	assert.False(t, out.CallLLM)
	assert.Equal(t, 1, conv.Len())
}

func TestProcessInvalidArgumentsFallBackToRawString(t *testing.T) {
	var got Arguments
	m := &stubManifest{
		hasModule: true,
		module:    map[string]Callable{"echo": recordingCallable(Output{Result: TextResult("done")}, nil, &got)},
	}
	rep := &recordingReporter{}
	conv := chat.NewContext("c")

	out, err := newTestCall(&Request{Name: "echo", Arguments: "not { json"}, m, rep).Process(context.Background(), conv, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Message)

	raw, ok := got.Raw()
	require.True(t, ok, "callable must receive the raw string")
	assert.Equal(t, "not { json", raw)
	assert.Equal(t, []string{"Function echo: Failed to load arguments as json"}, rep.warnings)
}

func TestProcessRepairsArgumentsWhenEnabled(t *testing.T) {
	var got Arguments
	m := &stubManifest{
		hasModule: true,
		repair:    true,
		module:    map[string]Callable{"echo": recordingCallable(Output{Result: TextResult("done")}, nil, &got)},
	}
	rep := &recordingReporter{}

	_, err := newTestCall(&Request{Name: "echo", Arguments: `{"city": "Paris",}`}, m, rep).
		Process(context.Background(), chat.NewContext("c"), nil)
	require.NoError(t, err)

	fields, ok := got.Map()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"city": "Paris"}, fields)
	assert.Len(t, rep.warnings, 1)
}

func TestProcessNotebookPythonScenario(t *testing.T) {
	var got Arguments
	sandbox := &stubLookup{funcs: map[string]Callable{
		"python": recordingCallable(Output{Result: TextResult("2")}, nil, &got),
	}}
	m := &stubManifest{notebook: true}
	rep := &recordingReporter{}
	conv := chat.NewContext("c", chat.Message{Role: chat.RoleUser, Content: "compute 1+1"})

	out, err := newTestCall(&Request{Name: "python", Arguments: "print(1+1)"}, m, rep).Process(context.Background(), conv, sandbox)
	require.NoError(t, err)

	fields, ok := got.Map()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"code": "print(1+1)", "query": "compute 1+1"}, fields)
	assert.Equal(t, []string{"python function was called"}, rep.warnings)
	assert.Equal(t, []string{"print(1+1)"}, rep.code)
	assert.Equal(t, "2", out.Message)
}

func TestNotebookRuleRequiresNotebookFlag(t *testing.T) {
	m := &stubManifest{}
	rep := &recordingReporter{}
	call := newTestCall(&Request{Name: "python", Arguments: "print(1+1)"}, m, rep)

	args := call.arguments(chat.Message{Content: "compute 1+1"})
	raw, ok := args.Raw()
	require.True(t, ok)
	assert.Equal(t, "print(1+1)", raw)
	assert.Equal(t, []string{"Function python: Failed to load arguments as json"}, rep.warnings)
}

func TestNotebookRuleKeepsStructuredArguments(t *testing.T) {
	m := &stubManifest{notebook: true}
	rep := &recordingReporter{}
	call := newTestCall(&Request{Name: "python", Arguments: `{"code":"x=1"}`}, m, rep)

	args := call.arguments(chat.Message{Content: "ignored"})
	fields, ok := args.Map()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"code": "x=1"}, fields)
	assert.Empty(t, rep.warnings)
}

func TestProcessUnknownFunctionScenario(t *testing.T) {
	rep := &recordingReporter{}
	conv := chat.NewContext("c", chat.Message{Role: chat.RoleUser, Content: "do it"})

	out, err := newTestCall(&Request{Name: "unknown_fn", Arguments: `{}`}, &stubManifest{}, rep).Process(context.Background(), conv, nil)
	require.NoError(t, err)
	assert.Equal(t, Outcome{FunctionName: "unknown_fn"}, out)
	assert.Equal(t, []string{"No execution for function unknown_fn"}, rep.errors)
	assert.Equal(t, 1, conv.Len())
}

func TestProcessModuleMissResolvesToNothing(t *testing.T) {
	rep := &recordingReporter{}
	m := &stubManifest{hasModule: true, module: map[string]Callable{}}

	out, err := newTestCall(&Request{Name: "missing"}, m, rep).Process(context.Background(), chat.NewContext("c"), nil)
	require.NoError(t, err)
	assert.Equal(t, Outcome{FunctionName: "missing"}, out)
	assert.Len(t, rep.errors, 1)
}

func TestProcessSideMessageIsAppendedBeforeResult(t *testing.T) {
	m := &stubManifest{
		hasModule:  true,
		resultForm: "Result: {result}",
		module: map[string]Callable{
			"act": recordingCallable(Output{Result: MapResult(map[string]any{"ok": true}), Message: "did it"}, nil, nil),
		},
	}
	conv := chat.NewContext("c")

	out, err := newTestCall(&Request{Name: "act", Arguments: `{}`}, m, &recordingReporter{}).Process(context.Background(), conv, nil)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Message: `Result: {"ok": true}`, FunctionName: "act", CallLLM: true}, out)

	assert.Equal(t, []chat.Message{
		{Role: chat.RoleAssistant, Content: "did it"},
		{Role: chat.RoleFunction, Content: `Result: {"ok": true}`, Name: "act"},
	}, conv.Messages())
}

func TestProcessSandboxMissPropagates(t *testing.T) {
	m := &stubManifest{notebook: true, hasModule: true, module: map[string]Callable{
		"plot": recordingCallable(Output{Result: TextResult("module")}, nil, nil),
	}}
	conv := chat.NewContext("c")

	_, err := newTestCall(&Request{Name: "plot", Arguments: `{}`}, m, &recordingReporter{}).
		Process(context.Background(), conv, &stubLookup{funcs: map[string]Callable{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSandboxMisconfigured)

	var lookupErr *SandboxLookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "plot", lookupErr.Name)
	assert.Zero(t, conv.Len())
}

func TestProcessNotebookWithoutSandboxUsesModule(t *testing.T) {
	m := &stubManifest{notebook: true, hasModule: true, module: map[string]Callable{
		"plot": recordingCallable(Output{Result: TextResult("from module")}, nil, nil),
	}}

	out, err := newTestCall(&Request{Name: "plot", Arguments: `{}`}, m, &recordingReporter{}).
		Process(context.Background(), chat.NewContext("c"), nil)
	require.NoError(t, err)
	assert.Equal(t, "from module", out.Message)
}

func TestProcessEchoesCodeWithoutChangingResult(t *testing.T) {
	var got Arguments
	m := &stubManifest{hasModule: true, module: map[string]Callable{
		"run": recordingCallable(Output{Result: TextResult("ok")}, nil, &got),
	}}
	rep := &recordingReporter{}

	out, err := newTestCall(&Request{Name: "run", Arguments: `{"code":["a = 1","print(a)"]}`}, m, rep).
		Process(context.Background(), chat.NewContext("c"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a = 1\nprint(a)"}, rep.code)
	assert.Equal(t, "ok", out.Message)
	fields, _ := got.Map()
	assert.Equal(t, []any{"a = 1", "print(a)"}, fields["code"])
}

func TestProcessCallableErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	m := &stubManifest{hasModule: true, module: map[string]Callable{
		"fail": recordingCallable(Output{}, boom, nil),
	}}
	conv := chat.NewContext("c")

	_, err := newTestCall(&Request{Name: "fail"}, m, &recordingReporter{}).Process(context.Background(), conv, nil)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, conv.Len())
}

func TestProcessReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	m := &stubManifest{
		actions:   map[string]Action{"declared": &stubAction{message: "x"}},
		hasModule: true,
		module:    map[string]Callable{"dynamic": recordingCallable(Output{Result: TextResult("")}, nil, nil)},
	}
	ctx := context.Background()
	conv := chat.NewContext("c")

	for _, name := range []string{"declared", "dynamic", "absent"} {
		_, err := newTestCall(&Request{Name: name}, m, &recordingReporter{}, WithObserver(obs)).Process(ctx, conv, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []observation{
		{sourceDeclared, OutcomeMessage},
		{sourceModule, OutcomeEmpty},
		{sourceNone, OutcomeEmpty},
	}, obs.seen)
}

func TestEmitData(t *testing.T) {
	m := &stubManifest{actions: map[string]Action{
		"switch": &stubAction{emit: true},
		"plain":  &stubAction{message: "x"},
	}}

	data, method := newTestCall(&Request{Name: "switch", Arguments: `{"manifest":"cal"}`}, m, &recordingReporter{}).EmitData()
	assert.Equal(t, map[string]any{"emitted": map[string]any{"manifest": "cal"}}, data)
	assert.Equal(t, "switch_session", method)

	data, method = newTestCall(&Request{Name: "plain"}, m, &recordingReporter{}).EmitData()
	assert.Nil(t, data)
	assert.Empty(t, method)

	data, method = newTestCall(&Request{Name: "undeclared"}, m, &recordingReporter{}).EmitData()
	assert.Nil(t, data)
	assert.Empty(t, method)
}

func TestCallString(t *testing.T) {
	rep := &recordingReporter{}
	call := newTestCall(&Request{Name: "get_weather", Arguments: `{"location":"Paris"}`}, &stubManifest{}, rep)
	assert.Equal(t, `get_weather: ({"location":"Paris"})`, call.String())

	call = newTestCall(&Request{Name: "python", Arguments: "print(1)"}, &stubManifest{}, rep)
	assert.Equal(t, "python: (print(1))", call.String())
	assert.Empty(t, rep.warnings)
}
