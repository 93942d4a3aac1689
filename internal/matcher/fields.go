package matcher

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/thebtf/chatlens/pkg/models"
)

// Payload accessors. Event fields come from decoded JSON, so numbers arrive as
// float64 and nested objects as map[string]any. Every accessor tolerates a
// nil map and a mismatched type.

func str(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := str(m, k); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func mapField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func sliceField(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// asInt converts integral JSON numbers. Booleans and fractional values are rejected.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(string(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func intField(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	return asInt(m[key])
}

// asNumber accepts any numeric JSON value.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// toolIdentifier resolves the tool id from the event or its toolSpecificData.
func toolIdentifier(ev models.ToolEvent) string {
	for _, key := range []string{"toolName", "toolId", "tool"} {
		if s, ok := str(ev.Fields, key); ok {
			return s
		}
	}
	tsd := mapField(ev.Fields, "toolSpecificData")
	if s := firstString(tsd, "toolId", "toolName"); s != "" {
		return s
	}
	return ""
}

// isInvocation reports whether ev has the given kind and one of the tool ids.
func isInvocation(ev models.ToolEvent, kind string, toolIDs ...string) bool {
	if !ev.Is(kind) {
		return false
	}
	id := toolIdentifier(ev)
	for _, want := range toolIDs {
		if id == want {
			return true
		}
	}
	return false
}

// flattenText renders a loosely typed result value as plain text.
func flattenText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if item != nil {
				parts = append(parts, flattenText(item))
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		for _, k := range []string{"text", "value", "message", "stderr", "stdout"} {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
		return models.MarshalCompact(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// splitLines splits like a line reader: no trailing empty element for a
// terminating newline, and CRLF is treated as LF.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
