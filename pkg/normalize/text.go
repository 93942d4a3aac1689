package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Truncate shortens s to at most limit runes, replacing the tail with "..."
// when it had to cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// ShortPath keeps the last four components of a path. Paths with four or
// fewer components, root included, are returned cleaned of empty segments.
func ShortPath(path string) string {
	if path == "" {
		return path
	}
	sep := "/"
	if strings.Contains(path, `\`) && !strings.Contains(path, "/") {
		sep = `\`
	}
	var parts []string
	root := ""
	switch {
	case strings.HasPrefix(path, sep):
		root = sep
	case len(path) >= 3 && path[1] == ':' && (path[2] == '\\' || path[2] == '/'):
		root = path[:3]
		path = path[3:]
	}
	if root != "" {
		parts = append(parts, root)
	}
	for _, p := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		parts = append(parts, p)
	}
	if len(parts) <= 4 {
		if root == "" {
			return strings.Join(parts, sep)
		}
		return root + strings.Join(parts[1:], sep)
	}
	return strings.Join(parts[len(parts)-4:], sep)
}

// FormatURI renders a serialized URI object as a display string.
// Filesystem paths win, then scheme://authority/path, then the bare path.
func FormatURI(uri map[string]any) string {
	if v, ok := uri["fsPath"].(string); ok && v != "" {
		return v
	}
	if v, ok := uri["external"].(string); ok && v != "" {
		return v
	}
	scheme, _ := uri["scheme"].(string)
	authority, _ := uri["authority"].(string)
	path, _ := uri["path"].(string)
	if scheme != "" && scheme != "file" && path != "" {
		if authority != "" {
			return scheme + "://" + authority + path
		}
		return scheme + ":" + path
	}
	if path != "" {
		return path
	}
	data, err := json.Marshal(uri)
	if err != nil {
		return ""
	}
	return string(data)
}

// ExtractFSPath returns a filesystem path from a serialized URI object, or "".
func ExtractFSPath(uri map[string]any) string {
	if v, ok := uri["fsPath"].(string); ok && v != "" {
		return v
	}
	if v, ok := uri["external"].(string); ok && strings.HasPrefix(v, "file://") {
		return strings.TrimPrefix(v, "file://")
	}
	if v, ok := uri["path"].(string); ok && v != "" {
		return v
	}
	return ""
}
