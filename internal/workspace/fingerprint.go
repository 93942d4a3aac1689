package workspace

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidSelector is returned for selectors that are neither a
// fingerprint, a path, nor a registered workspace name.
var ErrInvalidSelector = errors.New("invalid workspace selector")

// FingerprintLen is the length of a workspace fingerprint in hex characters.
const FingerprintLen = 16

// Fingerprint returns sha1(resolved absolute path) truncated to 16 hex chars.
func Fingerprint(root string) string {
	sum := sha1.Sum([]byte(resolve(root)))
	return hex.EncodeToString(sum[:])[:FingerprintLen]
}

// IsFingerprint reports whether s looks like a workspace fingerprint.
func IsFingerprint(s string) bool {
	if len(s) != FingerprintLen {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// NormalizeSelector turns a selector into a fingerprint. Existing paths and
// anything containing a separator are resolved against baseDir; registered
// names map to their root; 16-char hex strings pass through lowercased.
func NormalizeSelector(selector, baseDir string, registry *Registry) (string, error) {
	candidate := strings.TrimSpace(selector)
	if candidate == "" {
		return "", fmt.Errorf("%w: selector cannot be empty", ErrInvalidSelector)
	}

	if w, ok := registry.Get(candidate); ok {
		return w.Fingerprint(), nil
	}

	target := expandHome(candidate)
	if !filepath.IsAbs(target) {
		target = filepath.Join(baseDir, target)
	}
	if _, err := os.Stat(target); err == nil || strings.ContainsAny(candidate, `/\`) {
		return Fingerprint(target), nil
	}

	if lowered := strings.ToLower(candidate); IsFingerprint(lowered) {
		return lowered, nil
	}

	return "", fmt.Errorf("%w: %q; provide a 16-character fingerprint, a workspace path, or a registered name",
		ErrInvalidSelector, selector)
}

// FilterOptions are the CLI inputs that decide workspace scoping.
type FilterOptions struct {
	Registry      *Registry
	Root          string
	Cwd           string
	Selectors     []string
	AllWorkspaces bool
}

// ResolveFilters returns the sorted fingerprints to scope to, or nil when
// every workspace is allowed. Without selectors the filter is the root
// fingerprint; with no explicit root, a registered workspace containing cwd
// stands in for cwd.
func ResolveFilters(opts FilterOptions) ([]string, error) {
	if opts.AllWorkspaces {
		return nil, nil
	}
	base := opts.Root
	if base == "" {
		base = opts.Cwd
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("resolve working directory: %w", err)
			}
			base = wd
		}
		if w := opts.Registry.Containing(base); w != nil {
			base = w.Root
		}
	}
	base = resolve(base)

	if len(opts.Selectors) == 0 {
		return []string{Fingerprint(base)}, nil
	}

	seen := map[string]bool{}
	var out []string
	for _, sel := range opts.Selectors {
		fp, err := NormalizeSelector(sel, base, opts.Registry)
		if err != nil {
			return nil, err
		}
		if !seen[fp] {
			seen[fp] = true
			out = append(out, fp)
		}
	}
	sort.Strings(out)
	return out, nil
}

// resolve makes path absolute and follows symlinks when it exists.
func resolve(path string) string {
	path = expandHome(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	return path
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
