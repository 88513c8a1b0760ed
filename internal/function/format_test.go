package function

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		form   string
		want   string
	}{
		{name: "text without form", result: TextResult("sunny"), want: "sunny"},
		{name: "mapping is json encoded", result: MapResult(map[string]any{"ok": true}), want: `{"ok": true}`},
		{name: "keys are sorted", result: MapResult(map[string]any{"b": 1, "a": 2}), want: `{"a": 2, "b": 1}`},
		{name: "html is not escaped", result: MapResult(map[string]any{"h": "<b>"}), want: `{"h": "<b>"}`},
		{name: "separators inside strings are kept", result: MapResult(map[string]any{"s": `a,b:"c"`}), want: `{"s": "a,b:\"c\""}`},
		{name: "non-ascii is escaped", result: MapResult(map[string]any{"ok": true, "name": "café"}), want: `{"name": "caf\u00e9", "ok": true}`},
		{name: "astral runes use surrogate pairs", result: MapResult(map[string]any{"e": "😀"}), want: `{"e": "\ud83d\ude00"}`},
		{name: "nested values", result: MapResult(map[string]any{"l": []any{1, "x"}, "m": map[string]any{"k": nil}}), want: `{"l": [1, "x"], "m": {"k": null}}`},
		{name: "text with form", result: TextResult("sunny"), form: "Weather: {result}", want: "Weather: sunny"},
		{name: "mapping with form", result: MapResult(map[string]any{"ok": true}), form: "Result: {result}", want: `Result: {"ok": true}`},
		{name: "doubled braces are literal", result: MapResult(map[string]any{"r": 1}), form: `{{"wrapped": {result}}}`, want: `{"wrapped": {"r": 1}}`},
		{name: "braces in text are untouched", result: TextResult("{{x}}"), form: "{{ {result} }}", want: "{ {{x}} }"},
		{name: "form without placeholder", result: TextResult("x"), form: "fixed", want: "fixed"},
		{name: "empty text", result: TextResult(""), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatResult(tt.result, tt.form))
		})
	}
}
