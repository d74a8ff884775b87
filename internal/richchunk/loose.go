package richchunk

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Component data is decoded without a schema, so field access goes through
// these helpers instead of type assertions scattered over the classifier.

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// field returns data[key] rendered as a string, "" when absent.
func field(data map[string]any, key string) string {
	return str(data[key])
}

// firstOf returns the first non-empty string field among keys.
func firstOf(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := field(data, k); s != "" {
			return s
		}
	}
	return ""
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

// truthy mirrors the loose boolean fields senders use: false, 0, "" and
// "false" are falsy, absence is handled by the caller.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	}
	if n, ok := number(v); ok {
		return n != 0
	}
	return true
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}
