package recall

import (
	"slices"
	"sort"
	"strings"

	"github.com/thebtf/chatlens/pkg/models"
)

// Filter scopes recall to workspaces, sessions and an agent. Empty fields
// match everything.
type Filter struct {
	Agent      string   `json:"agent,omitempty"`
	Workspaces []string `json:"workspaces,omitempty"`
	Sessions   []string `json:"sessions,omitempty"`
}

// Normalized returns a copy with trimmed, sorted, de-duplicated values so
// equivalent filters produce the same cache key.
func (f Filter) Normalized() Filter {
	return Filter{
		Agent:      strings.TrimSpace(f.Agent),
		Workspaces: sortedUnique(f.Workspaces),
		Sessions:   sortedUnique(f.Sessions),
	}
}

// Active reports whether the filter restricts anything.
func (f Filter) Active() bool {
	return f.Agent != "" || len(f.Workspaces) > 0 || len(f.Sessions) > 0
}

// Matches reports whether doc passes the filter.
func (f Filter) Matches(doc models.Document) bool {
	if f.Agent != "" && doc.AgentID != f.Agent {
		return false
	}
	if len(f.Workspaces) > 0 && !slices.Contains(f.Workspaces, doc.WorkspaceFingerprint) {
		return false
	}
	if len(f.Sessions) > 0 && !slices.Contains(f.Sessions, doc.SessionID) {
		return false
	}
	return true
}

// Apply returns the documents that pass the filter.
func (f Filter) Apply(docs []models.Document) []models.Document {
	if !f.Active() {
		return docs
	}
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if f.Matches(d) {
			out = append(out, d)
		}
	}
	return out
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
