// Package matcher compresses a turn's tool-invocation event stream into
// compact rendered actions.
//
// Matching runs left to right. At each position the registry's patterns are
// tried in priority order and the first that matches consumes its events.
// Events no pattern claims are either suppressed as noise or rendered by a
// generic single-event fallback.
package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/chatlens/internal/privacy"
	"github.com/thebtf/chatlens/pkg/models"
)

const fallbackSummaryLen = 120

// DefaultNoiseKinds are event kinds dropped in compact mode when no pattern
// claims them. The empty kind covers role-only conversational payloads.
var DefaultNoiseKinds = []string{
	"",
	models.KindThinking,
	models.KindMCPServersStarting,
	models.KindPrepareToolInvocation,
	models.KindToolInvocationSerialized,
	models.KindUndoStop,
	models.KindTextEditGroup,
	models.KindCodeblockURI,
}

// Options configures a Matcher.
type Options struct {
	// NoiseKinds replaces DefaultNoiseKinds when non-nil.
	NoiseKinds []string
	// RedactKeys are pruned from raw payloads. nil selects privacy.DefaultRedactKeys.
	RedactKeys []string
	// MaxDepth bounds raw payload traversal; 0 selects privacy.DefaultMaxDepth.
	MaxDepth int
}

// DefaultOptions returns the built-in noise set and redaction keys.
func DefaultOptions() Options {
	return Options{
		NoiseKinds: DefaultNoiseKinds,
		RedactKeys: privacy.DefaultRedactKeys,
	}
}

// Matcher applies a pattern registry to event streams. It holds no per-turn
// state and is safe for concurrent use.
type Matcher struct {
	registry *Registry
	noise    map[string]bool
	pruner   *privacy.Pruner
}

// New creates a matcher. A nil registry selects DefaultRegistry.
func New(registry *Registry, opts Options) *Matcher {
	if registry == nil {
		registry = DefaultRegistry()
	}
	kinds := opts.NoiseKinds
	if kinds == nil {
		kinds = DefaultNoiseKinds
	}
	keys := opts.RedactKeys
	if keys == nil {
		keys = privacy.DefaultRedactKeys
	}
	noise := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		noise[k] = true
	}
	return &Matcher{
		registry: registry,
		noise:    noise,
		pruner:   privacy.NewPruner(keys, opts.MaxDepth),
	}
}

// Match renders events in order. In raw mode nothing is suppressed and every
// action carries the redaction-pruned payloads of the events it consumed;
// the windows matched are the same in both modes.
func (m *Matcher) Match(events []models.ToolEvent, raw bool) []models.RenderedAction {
	actions := make([]models.RenderedAction, 0, len(events))
	for i := 0; i < len(events); {
		action, consumed, keep := m.step(events, i, raw)
		if keep {
			if raw {
				action.RawPayloads = m.payloads(events[i : i+consumed])
			}
			actions = append(actions, action)
		}
		i += consumed
	}
	return actions
}

// step resolves the action at position i and how many events it consumes.
func (m *Matcher) step(events []models.ToolEvent, i int, raw bool) (models.RenderedAction, int, bool) {
	for _, p := range m.registry.patterns {
		end := i + p.Window
		if end > len(events) {
			end = len(events)
		}
		window := events[i:end]
		n := p.Match(window)
		if n <= 0 {
			continue
		}
		if n > len(window) {
			n = len(window)
		}
		lookEnd := i + n + MaxWindow
		if lookEnd > len(events) {
			lookEnd = len(events)
		}
		return p.Render(events[i:i+n], events[i+n:lookEnd]), n, true
	}

	ev := events[i]
	if !raw && m.noise[ev.Kind] {
		return models.RenderedAction{}, 1, false
	}
	log.Debug().Str("kind", ev.Kind).Int("position", ev.Position).Msg("No pattern matched event, using fallback")
	return m.fallback(ev), 1, true
}

// fallback renders any single event as its kind plus a compact JSON excerpt.
func (m *Matcher) fallback(ev models.ToolEvent) models.RenderedAction {
	kind := ev.Kind
	if kind == "" {
		kind = "unknown"
	}
	summary := models.MarshalCompact(m.pruner.PruneMap(ev.Fields))
	return models.RenderedAction{
		Title:   "Raw " + kind,
		Summary: cutRunes(summary, fallbackSummaryLen),
	}
}

func (m *Matcher) payloads(events []models.ToolEvent) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		out = append(out, m.pruner.PruneMap(ev.Fields))
	}
	return out
}

// Titles returns the title of each action in order.
func Titles(actions []models.RenderedAction) []string {
	titles := make([]string, len(actions))
	for i, a := range actions {
		titles[i] = a.Title
	}
	return titles
}

// CountTitles tallies actions per title.
func CountTitles(actions []models.RenderedAction) map[string]int {
	counts := make(map[string]int, len(actions))
	for _, a := range actions {
		if t := strings.TrimSpace(a.Title); t != "" {
			counts[t]++
		}
	}
	return counts
}

func cutRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
