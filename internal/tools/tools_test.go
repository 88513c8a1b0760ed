package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/function-gateway/internal/function"
)

func TestCalculator(t *testing.T) {
	calc := NewCalculatorTool()
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
		want function.Result
	}{
		{
			name: "multiply",
			args: map[string]any{"operand1": 6.0, "operator": "*", "operand2": 7.0},
			want: function.MapResult(map[string]any{"expression": "6 * 7", "result": 42.0}),
		},
		{
			name: "divide by zero",
			args: map[string]any{"operand1": 1.0, "operator": "/", "operand2": 0.0},
			want: function.TextResult("Error: Division by zero is not allowed."),
		},
		{
			name: "unknown operator",
			args: map[string]any{"operand1": 1.0, "operator": "^", "operand2": 2.0},
			want: function.TextResult("Error: Unsupported operator '^'. Please use +, -, *, or /."),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := calc.Execute(ctx, function.MapArguments(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Result)
			assert.Empty(t, out.Message)
		})
	}
}

func TestCalculatorRejectsRawArguments(t *testing.T) {
	_, err := NewCalculatorTool().Execute(context.Background(), function.RawArguments("1+1"))
	assert.Error(t, err)
}

func TestWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("format"))
		if r.URL.Path == "/Atlantis" {
			_, _ = w.Write([]byte("Unknown location; please try ~Atlantis"))
			return
		}
		assert.Equal(t, "/San+Francisco,+CA", r.URL.Path)
		_, _ = w.Write([]byte("San Francisco: +15°C\n"))
	}))
	defer srv.Close()

	wt := NewWeatherTool().WithBaseURL(srv.URL + "/")
	ctx := context.Background()

	out, err := wt.Execute(ctx, function.MapArguments(map[string]any{"location": "San Francisco, CA"}))
	require.NoError(t, err)
	assert.Equal(t, function.TextResult("San Francisco: +15°C"), out.Result)
	assert.Equal(t, "Looked up the weather for San Francisco, CA.", out.Message)

	out, err = wt.Execute(ctx, function.MapArguments(map[string]any{"location": "Atlantis"}))
	require.NoError(t, err)
	assert.Equal(t, function.TextResult("I couldn't find the weather for 'Atlantis'. Please try another location."), out.Result)

	out, err = wt.Execute(ctx, function.MapArguments(map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, function.TextResult("Error: Location cannot be empty."), out.Result)
}

func TestWeatherUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewWeatherTool().WithBaseURL(srv.URL).
		Execute(context.Background(), function.MapArguments(map[string]any{"location": "Paris"}))
	assert.ErrorContains(t, err, "non-200 status: 500")
}

func TestToolManager(t *testing.T) {
	tm := NewDefaultToolManager()
	assert.Equal(t, 2, tm.ToolCount())

	defs := tm.GetDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "calculate", defs[0].Function.Name)
	assert.Equal(t, "get_current_weather", defs[1].Function.Name)
	assert.Equal(t, ToolTypeFunction, defs[0].Type)

	fn, ok := tm.Lookup("calculate")
	require.True(t, ok)
	out, err := fn.Call(context.Background(), function.MapArguments(map[string]any{"operand1": 2.0, "operator": "+", "operand2": 2.0}))
	require.NoError(t, err)
	fields, _ := out.Result.Map()
	assert.Equal(t, 4.0, fields["result"])

	_, ok = tm.Lookup("missing")
	assert.False(t, ok)
}

func TestToolManagerSubset(t *testing.T) {
	tm := NewDefaultToolManager()

	sub, err := tm.Subset([]string{"calculate"})
	require.NoError(t, err)
	assert.Equal(t, 1, sub.ToolCount())
	_, ok := sub.Lookup("get_current_weather")
	assert.False(t, ok)

	_, err = tm.Subset([]string{"nope"})
	assert.EqualError(t, err, "tool 'nope' not found")
}

func TestLookupBindsRawArgumentsToFirstRequiredParameter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Lisbon", r.URL.Path)
		_, _ = w.Write([]byte("Lisbon: +21°C"))
	}))
	defer srv.Close()

	tm := NewToolManager()
	tm.Register(NewWeatherTool().WithBaseURL(srv.URL + "/"))
	fn, ok := tm.Lookup("get_current_weather")
	require.True(t, ok)

	out, err := fn.Call(context.Background(), function.RawArguments("Lisbon"))
	require.NoError(t, err)
	assert.Equal(t, function.TextResult("Lisbon: +21°C"), out.Result)
}

func TestBindPositional(t *testing.T) {
	schema := NewCalculatorTool().Definition().Function.Parameters

	args := bindPositional(schema, function.RawArguments(" 6 "))
	fields, ok := args.Map()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"operand1": 6.0}, fields)

	args = bindPositional(schema, function.RawArguments("six"))
	fields, _ = args.Map()
	assert.Equal(t, map[string]any{"operand1": "six"}, fields)

	structured := function.MapArguments(map[string]any{"operand1": 1.0})
	assert.Equal(t, structured, bindPositional(schema, structured))

	raw := function.RawArguments("x")
	assert.Equal(t, raw, bindPositional(JSONSchema{Type: "object"}, raw))
}
