package function

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		wantMap map[string]any
		wantRaw *string
	}{
		{name: "json object", raw: `{"city":"Paris","days":3}`, wantMap: map[string]any{"city": "Paris", "days": float64(3)}},
		{name: "already a mapping", raw: map[string]any{"a": 1}, wantMap: map[string]any{"a": 1}},
		{name: "raw message", raw: json.RawMessage(`{"q":"go"}`), wantMap: map[string]any{"q": "go"}},
		{name: "nil", raw: nil, wantMap: map[string]any{}},
		{name: "empty string", raw: "", wantRaw: strPtr("")},
		{name: "json string literal", raw: `"print(1)"`, wantRaw: strPtr("print(1)")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := DecodeArguments(tt.raw)
			require.NoError(t, err)
			if tt.wantMap != nil {
				m, ok := args.Map()
				require.True(t, ok)
				assert.Equal(t, tt.wantMap, m)
				return
			}
			raw, ok := args.Raw()
			require.True(t, ok)
			assert.Equal(t, *tt.wantRaw, raw)
		})
	}
}

func TestDecodeArgumentsInvalidJSONReturnsDecodeError(t *testing.T) {
	_, err := DecodeArguments("print(1+1)")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "print(1+1)", decodeErr.Raw)

	raw, ok := decodeErr.Fallback().Raw()
	require.True(t, ok)
	assert.Equal(t, "print(1+1)", raw)
}

func TestDecodeArgumentsRejectsNonObjects(t *testing.T) {
	_, err := DecodeArguments(`[1,2,3]`)
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = DecodeArguments(42)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "42", decodeErr.Raw)
}

func TestDecodeThenFormatRoundTrips(t *testing.T) {
	inputs := []string{
		`{"ok":true}`,
		`{"city": "San Francisco, CA", "unit": "celsius"}`,
		`{"nested":{"list":[1,"two",null]},"html":"<b>&</b>"}`,
	}
	for _, in := range inputs {
		args, err := DecodeArguments(in)
		require.NoError(t, err)
		m, _ := args.Map()

		encoded := FormatResult(MapResult(m), "")
		again, err := DecodeArguments(encoded)
		require.NoError(t, err)
		m2, _ := again.Map()
		assert.Equal(t, m, m2, "round trip of %s", in)
	}
}

func TestRepairArguments(t *testing.T) {
	args, ok := repairArguments(`{"city": "Paris",}`)
	require.True(t, ok)
	m, _ := args.Map()
	assert.Equal(t, map[string]any{"city": "Paris"}, m)
}

func TestArgumentsCode(t *testing.T) {
	code, ok := MapArguments(map[string]any{"code": []any{"x = 1", "print(x)"}}).Code()
	require.True(t, ok)
	assert.Equal(t, "x = 1\nprint(x)", code)

	code, ok = MapArguments(map[string]any{"code": "print(2)"}).Code()
	require.True(t, ok)
	assert.Equal(t, "print(2)", code)

	_, ok = MapArguments(map[string]any{"code": ""}).Code()
	assert.False(t, ok)

	_, ok = RawArguments("print(3)").Code()
	assert.False(t, ok)
}

func TestArgumentsMarshalJSON(t *testing.T) {
	b, err := json.Marshal(MapArguments(map[string]any{"a": "b"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"b"}`, string(b))

	b, err = json.Marshal(RawArguments("hello"))
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, string(b))
}

func strPtr(s string) *string { return &s }
