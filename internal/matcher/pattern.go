package matcher

import (
	"sort"

	"github.com/thebtf/chatlens/pkg/models"
)

// MaxWindow is the widest window a pattern may declare.
const MaxWindow = 4

// Pattern is one registry entry: a fixed window, a predicate over that window
// and a renderer for the events the predicate consumed.
type Pattern struct {
	// Match returns how many events at the head of window the pattern
	// consumes, or 0 when it does not apply. window holds at most Window events.
	Match func(window []models.ToolEvent) int
	// Render builds the action from the consumed events. lookahead holds the
	// events that follow, up to MaxWindow; renderers may peek but never consume.
	Render func(consumed, lookahead []models.ToolEvent) models.RenderedAction
	Name   string
	Window int
}

// Registry is an ordered, closed list of patterns tried at every position.
type Registry struct {
	patterns []Pattern
}

// NewRegistry orders patterns by window length, longest first. Patterns with
// equal windows keep the order they were given in.
func NewRegistry(patterns ...Pattern) *Registry {
	ordered := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		if p.Window < 1 {
			p.Window = 1
		}
		if p.Window > MaxWindow {
			p.Window = MaxWindow
		}
		ordered = append(ordered, p)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Window > ordered[j].Window
	})
	return &Registry{patterns: ordered}
}

// DefaultRegistry returns the built-in patterns.
func DefaultRegistry() *Registry {
	return NewRegistry(
		ApplyPatchPattern(),
		TerminalPattern(),
		ReadFilePattern(),
		GrepSearchPattern(),
		InlineReferencePattern(),
	)
}

// Patterns returns the registry in priority order.
func (r *Registry) Patterns() []Pattern {
	return append([]Pattern(nil), r.patterns...)
}

// Names lists pattern names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.Name
	}
	return names
}
