package action

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/dileep-u-k/function-gateway/internal/function"
)

// render replaces each {key} in tmpl with the argument of that name. Keys
// missing from the arguments are left untouched. escape, when non-nil, is
// applied to every substituted value.
func render(tmpl string, args function.Arguments, extra map[string]string, escape func(string) string) string {
	fields, _ := args.Map()
	if len(fields) == 0 && len(extra) == 0 {
		return tmpl
	}

	keys := make([]string, 0, len(fields)+len(extra))
	values := make(map[string]string, len(fields)+len(extra))
	for k, v := range fields {
		keys = append(keys, k)
		values[k] = stringify(v)
	}
	for k, v := range extra {
		if _, ok := values[k]; !ok {
			keys = append(keys, k)
		}
		values[k] = v
	}
	// Deterministic order for strings.NewReplacer.
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		v := values[k]
		if escape != nil {
			v = escape(v)
		}
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// renderValue applies render to every string inside v.
func renderValue(v any, args function.Arguments) any {
	switch t := v.(type) {
	case string:
		return render(t, args, nil, nil)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = renderValue(item, args)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = renderValue(item, args)
		}
		return out
	default:
		return v
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64, bool, int, int64:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func queryEscape(s string) string { return url.QueryEscape(s) }
