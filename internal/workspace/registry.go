// Package workspace scopes catalog records to source projects.
package workspace

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Workspace names a project root.
type Workspace struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Root        string `yaml:"root"`
}

// Fingerprint returns the fingerprint of the workspace root.
func (w *Workspace) Fingerprint() string {
	return Fingerprint(w.Root)
}

// Config is the top-level YAML structure of workspaces.yml.
type Config struct {
	Workspaces []Workspace `yaml:"workspaces"`
}

// Registry holds named workspaces, keyed by name.
type Registry struct {
	byName map[string]*Workspace
	order  []string // preserves definition order
}

// NewRegistry builds a registry from workspaces. Later duplicates win.
func NewRegistry(workspaces ...Workspace) *Registry {
	r := &Registry{byName: make(map[string]*Workspace, len(workspaces))}
	for i := range workspaces {
		w := workspaces[i]
		w.Root = expandHome(w.Root)
		if _, dup := r.byName[w.Name]; !dup {
			r.order = append(r.order, w.Name)
		}
		r.byName[w.Name] = &w
	}
	return r
}

// LoadRegistry reads the YAML file at path. A missing file yields an empty
// registry, not an error.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRegistry(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, w := range cfg.Workspaces {
		if strings.TrimSpace(w.Name) == "" || strings.TrimSpace(w.Root) == "" {
			return nil, fmt.Errorf("parse %s: workspace %d needs a name and a root", path, i)
		}
	}
	return NewRegistry(cfg.Workspaces...), nil
}

// Get returns a workspace by name. Returns (nil, false) if not found.
func (r *Registry) Get(name string) (*Workspace, bool) {
	if r == nil {
		return nil, false
	}
	w, ok := r.byName[name]
	return w, ok
}

// All returns all workspaces in definition order.
func (r *Registry) All() []*Workspace {
	if r == nil {
		return nil
	}
	result := make([]*Workspace, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name])
	}
	return result
}

// Names returns a sorted list of workspace names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Containing returns the workspace whose root is the longest prefix of
// path, or nil.
func (r *Registry) Containing(path string) *Workspace {
	if r == nil {
		return nil
	}
	path = resolve(path)
	var best *Workspace
	bestLen := -1
	for _, name := range r.order {
		w := r.byName[name]
		root := resolve(w.Root)
		if path != root && !strings.HasPrefix(path, strings.TrimSuffix(root, string(os.PathSeparator))+string(os.PathSeparator)) {
			continue
		}
		if len(root) > bestLen {
			best, bestLen = w, len(root)
		}
	}
	return best
}
