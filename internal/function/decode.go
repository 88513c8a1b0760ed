package function

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNotObject is wrapped by a DecodeError when the arguments are valid JSON
// but neither an object nor a string.
var ErrNotObject = errors.New("arguments are not a JSON object")

// DecodeError reports arguments that could not be decoded. Raw holds the
// original text, which is the fallback argument value.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode arguments: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Fallback returns the arguments to use in place of the failed decode.
func (e *DecodeError) Fallback() Arguments {
	return RawArguments(e.Raw)
}

// DecodeArguments normalizes a call's raw argument payload. It never applies a
// fallback itself: on failure it returns a *DecodeError and the caller decides.
func DecodeArguments(raw any) (Arguments, error) {
	switch v := raw.(type) {
	case nil:
		return MapArguments(nil), nil
	case Arguments:
		return v, nil
	case map[string]any:
		return MapArguments(v), nil
	case string:
		return decodeString(v)
	case json.RawMessage:
		return decodeString(string(v))
	case []byte:
		return decodeString(string(v))
	default:
		return Arguments{}, &DecodeError{Raw: fmt.Sprint(v), Err: fmt.Errorf("unsupported argument type %T", raw)}
	}
}

func decodeString(s string) (Arguments, error) {
	if s == "" {
		return RawArguments(s), nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return Arguments{}, &DecodeError{Raw: s, Err: err}
	}
	switch v := decoded.(type) {
	case map[string]any:
		return MapArguments(v), nil
	case string:
		return RawArguments(v), nil
	default:
		return Arguments{}, &DecodeError{Raw: s, Err: ErrNotObject}
	}
}

// repairArguments runs a malformed argument string through jsonrepair and
// accepts the outcome only when it is a JSON object.
func repairArguments(raw string) (Arguments, bool) {
	fixed, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return Arguments{}, false
	}
	args, err := decodeString(fixed)
	if err != nil || !args.IsMap() {
		return Arguments{}, false
	}
	return args, true
}

// encodeJSON is the canonical encoding used for structured results: compact,
// keys sorted, no HTML escaping.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
