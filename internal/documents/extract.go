package documents

import (
	"sort"
	"strconv"
	"strings"

	"github.com/thebtf/chatlens/pkg/normalize"
)

const toolSnippetLen = 160

var (
	commandKeys  = []string{"command", "toolCommand", "lastCommand"}
	exitCodeKeys = []string{"exitCode", "exit_code", "code"}
	skippedKeys  = map[string]bool{"status": true, "$mid": true}
)

// sortedKeys makes recursive searches over decoded maps deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExtractCommand finds the first command string in nested metadata.
func ExtractCommand(v any) string {
	switch t := v.(type) {
	case map[string]any:
		for _, k := range commandKeys {
			if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		for _, k := range sortedKeys(t) {
			if cmd := ExtractCommand(t[k]); cmd != "" {
				return cmd
			}
		}
	case []any:
		for _, item := range t {
			if cmd := ExtractCommand(item); cmd != "" {
				return cmd
			}
		}
	}
	return ""
}

// ExtractExitCode finds the first exit code in nested metadata. Numeric
// strings are accepted.
func ExtractExitCode(v any) (int, bool) {
	switch t := v.(type) {
	case map[string]any:
		for _, k := range exitCodeKeys {
			switch n := t[k].(type) {
			case float64:
				return int(n), true
			case int:
				return n, true
			case string:
				if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
					return i, true
				}
			}
		}
		for _, k := range sortedKeys(t) {
			if code, ok := ExtractExitCode(t[k]); ok {
				return code, true
			}
		}
	case []any:
		for _, item := range t {
			if code, ok := ExtractExitCode(item); ok {
				return code, true
			}
		}
	}
	return 0, false
}

// FlattenPayload joins every scalar of a decoded payload with newlines,
// skipping bookkeeping keys.
func FlattenPayload(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		var parts []string
		for _, k := range sortedKeys(t) {
			if skippedKeys[k] {
				continue
			}
			if s := FlattenPayload(t[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case []any:
		var parts []string
		for _, item := range t {
			if s := FlattenPayload(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// SummariseToolOutput renders "kind: snippet" with the snippet flattened to
// one line and capped. Undecodable payloads use their raw text.
func SummariseToolOutput(kind string, payload any, raw string) string {
	if kind == "" {
		kind = "tool"
	}
	snippet := FlattenPayload(payload)
	if payload == nil {
		snippet = raw
	}
	snippet = strings.NewReplacer("\r", " ", "\n", " ").Replace(snippet)
	snippet = normalize.Truncate(snippet, toolSnippetLen)
	if snippet == "" {
		return kind
	}
	return kind + ": " + snippet
}
