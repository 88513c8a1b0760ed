package function

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// resultPlaceholder is substituted by the serialized result in a result form.
const resultPlaceholder = "{result}"

// FormatResult turns a callable's result into the text appended to the
// conversation. Structured results are JSON-encoded first; a non-empty
// resultForm is then used as a template around the text. Doubled braces in
// the form are literal braces.
func FormatResult(result Result, resultForm string) string {
	text, ok := result.Text()
	if !ok {
		data, _ := result.Map()
		encoded, err := dumpJSON(data)
		if err != nil {
			encoded = fmt.Sprint(data)
		}
		text = encoded
	}
	if resultForm == "" {
		return text
	}
	parts := strings.Split(resultForm, resultPlaceholder)
	for i, p := range parts {
		parts[i] = unescapeBraces(p)
	}
	return strings.Join(parts, text)
}

var braceUnescaper = strings.NewReplacer("{{", "{", "}}", "}")

func unescapeBraces(s string) string {
	return braceUnescaper.Replace(s)
}

// dumpJSON encodes a structured result the way results are shown to the
// model: keys sorted, ", " and ": " separators, non-ASCII escaped as \uXXXX.
func dumpJSON(v any) (string, error) {
	compact, err := encodeJSON(v)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(compact) + len(compact)/4)
	inString, escaped := false, false
	for _, r := range compact {
		switch {
		case inString && escaped:
			escaped = false
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case !inString && r == ',':
			b.WriteString(", ")
			continue
		case !inString && r == ':':
			b.WriteString(": ")
			continue
		}
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&b, `\u%04x`, r)
	}
	return b.String(), nil
}
