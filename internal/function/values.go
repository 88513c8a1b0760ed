package function

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request is a function call extracted from an LLM response. Arguments is
// whatever the provider produced: usually a JSON string, sometimes an
// already-decoded map.
type Request struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}

// Arguments is the decoded argument set of a call: either a structured
// mapping or the raw string the LLM sent.
type Arguments struct {
	fields     map[string]any
	raw        string
	structured bool
}

// MapArguments wraps a structured argument mapping.
func MapArguments(fields map[string]any) Arguments {
	if fields == nil {
		fields = map[string]any{}
	}
	return Arguments{fields: fields, structured: true}
}

// RawArguments wraps an undecoded argument string.
func RawArguments(raw string) Arguments {
	return Arguments{raw: raw}
}

// IsMap reports whether the arguments decoded to a mapping.
func (a Arguments) IsMap() bool { return a.structured }

// Map returns the argument mapping and true, or nil and false for raw arguments.
func (a Arguments) Map() (map[string]any, bool) {
	if !a.structured {
		return nil, false
	}
	return a.fields, true
}

// Raw returns the raw argument string and true, or "" and false for mappings.
func (a Arguments) Raw() (string, bool) {
	if a.structured {
		return "", false
	}
	return a.raw, true
}

// Get returns a named argument. Raw arguments have no named fields.
func (a Arguments) Get(key string) (any, bool) {
	if !a.structured {
		return nil, false
	}
	v, ok := a.fields[key]
	return v, ok
}

// Code returns the "code" field as text. An array of lines is joined with
// newlines.
func (a Arguments) Code() (string, bool) {
	v, ok := a.Get("code")
	if !ok {
		return "", false
	}
	switch code := v.(type) {
	case string:
		return code, code != ""
	case []string:
		return strings.Join(code, "\n"), len(code) > 0
	case []any:
		lines := make([]string, 0, len(code))
		for _, line := range code {
			lines = append(lines, fmt.Sprint(line))
		}
		return strings.Join(lines, "\n"), len(lines) > 0
	}
	return "", false
}

// String renders the arguments for logs: JSON for mappings, the raw text otherwise.
func (a Arguments) String() string {
	if !a.structured {
		return a.raw
	}
	s, err := encodeJSON(a.fields)
	if err != nil {
		return fmt.Sprint(a.fields)
	}
	return s
}

// MarshalJSON encodes mappings as objects and raw arguments as a JSON string.
func (a Arguments) MarshalJSON() ([]byte, error) {
	if a.structured {
		return json.Marshal(a.fields)
	}
	return json.Marshal(a.raw)
}

// Result is what a dynamic callable produced: a mapping or plain text.
type Result struct {
	data       map[string]any
	text       string
	structured bool
}

// MapResult wraps a structured result.
func MapResult(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{data: data, structured: true}
}

// TextResult wraps a plain-text result.
func TextResult(text string) Result {
	return Result{text: text}
}

// IsMap reports whether the result is structured.
func (r Result) IsMap() bool { return r.structured }

// Map returns the structured result and true, or nil and false for text.
func (r Result) Map() (map[string]any, bool) {
	if !r.structured {
		return nil, false
	}
	return r.data, true
}

// Text returns the text result and true, or "" and false for mappings.
func (r Result) Text() (string, bool) {
	if r.structured {
		return "", false
	}
	return r.text, true
}

// Output is the pair every dynamic callable returns. Message, when set, is an
// assistant-side narration appended to the conversation ahead of the result.
type Output struct {
	Result  Result
	Message string
}

// Outcome is what processing a call produced.
type Outcome struct {
	// Message is the function message appended to the conversation, or ""
	// when the call produced nothing.
	Message string
	// FunctionName is the name of the processed call, "" when it had none.
	FunctionName string
	// CallLLM reports whether the LLM should be invoked again with the result.
	CallLLM bool
}
