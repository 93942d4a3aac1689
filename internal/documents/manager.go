package documents

import (
	"github.com/thebtf/chatlens/internal/matcher"
	"github.com/thebtf/chatlens/pkg/models"
)

// Manager runs the configured builders over sessions.
type Manager struct {
	builders []Builder
}

// NewManager creates a manager. Builders whose granularity is not selected
// by options are skipped.
func NewManager(builders []Builder, options Options) *Manager {
	allowed := map[models.Granularity]bool{}
	for _, g := range options.Granularities {
		allowed[g] = true
	}
	m := &Manager{}
	for _, b := range builders {
		if len(allowed) > 0 && !allowed[b.Granularity()] {
			continue
		}
		m.builders = append(m.builders, b)
	}
	return m
}

// DefaultManager wires the turn, round and tool builders.
func DefaultManager(mt *matcher.Matcher, options Options) *Manager {
	return NewManager([]Builder{
		NewTurnBuilder(),
		NewRoundBuilder(mt, options.PromptExcerptLen),
		NewToolBuilder(),
	}, options)
}

// Build returns every document for the sessions, session by session.
func (m *Manager) Build(sessions []models.Session) []models.Document {
	var docs []models.Document
	for _, s := range sessions {
		for _, b := range m.builders {
			docs = append(docs, b.Build(s)...)
		}
	}
	return docs
}

// Granularities lists the active builders' granularities.
func (m *Manager) Granularities() []models.Granularity {
	out := make([]models.Granularity, len(m.builders))
	for i, b := range m.builders {
		out[i] = b.Granularity()
	}
	return out
}
