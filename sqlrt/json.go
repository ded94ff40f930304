package sqlrt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JSON helpers backing the transpiled JSON_VALUE / JSON_QUERY / ISJSON
// built-ins. Paths use the source syntax: $.a.b[0].c

func jsonSteps(path string) []string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return nil
	}
	var steps []string
	for _, part := range strings.Split(path, ".") {
		for {
			i := strings.Index(part, "[")
			if i < 0 {
				if part != "" {
					steps = append(steps, part)
				}
				break
			}
			if i > 0 {
				steps = append(steps, part[:i])
			}
			j := strings.Index(part, "]")
			if j < i {
				break
			}
			steps = append(steps, "["+part[i+1:j]+"]")
			part = part[j+1:]
		}
	}
	return steps
}

func jsonWalk(v any, steps []string) (any, bool) {
	for _, st := range steps {
		if strings.HasPrefix(st, "[") {
			arr, ok := v.([]any)
			if !ok {
				return nil, false
			}
			idx, err := strconv.Atoi(strings.Trim(st, "[]"))
			if err != nil || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			v = arr[idx]
			continue
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok = obj[st]
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// JSONValue returns the scalar at path as a string, or "" when the path does
// not resolve or resolves to an object/array.
func JSONValue(jsonStr, path string) string {
	var data any
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return ""
	}
	v, ok := jsonWalk(data, jsonSteps(path))
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return "" // objects and arrays are JSON_QUERY territory
	}
}

// JSONQuery returns the object or array at path re-serialized, or "".
func JSONQuery(jsonStr, path string) string {
	var data any
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return ""
	}
	v, ok := jsonWalk(data, jsonSteps(path))
	if !ok {
		return ""
	}
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return ""
}

// JSONModify sets the scalar at path and returns the new document. A failed
// parse returns the input unchanged.
func JSONModify(jsonStr, path string, newValue any) string {
	var data any
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return jsonStr
	}
	steps := jsonSteps(path)
	if len(steps) == 0 {
		return jsonStr
	}
	parent, ok := jsonWalk(data, steps[:len(steps)-1])
	if !ok {
		return jsonStr
	}
	last := steps[len(steps)-1]
	if obj, isObj := parent.(map[string]any); isObj && !strings.HasPrefix(last, "[") {
		obj[last] = newValue
	}
	b, err := json.Marshal(data)
	if err != nil {
		return jsonStr
	}
	return string(b)
}

// IsJSON mirrors ISJSON(): 1 for a valid document, 0 otherwise.
func IsJSON(s string) int32 {
	var v any
	if json.Unmarshal([]byte(s), &v) == nil {
		switch v.(type) {
		case map[string]any, []any:
			return 1
		}
	}
	return 0
}

// Reverse is the runtime helper for the REVERSE() built-in; it reverses by
// rune, not byte.
func Reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// FormatMessage applies RAISERROR-style %s/%d substitution.
func FormatMessage(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
