package documents

import (
	"strings"

	"github.com/thebtf/chatlens/internal/matcher"
	"github.com/thebtf/chatlens/pkg/models"
	"github.com/thebtf/chatlens/pkg/normalize"
)

// RoundBuilder emits one document per tool-invocation round. A round runs
// from one prepareToolInvocation event up to the next.
type RoundBuilder struct {
	matcher    *matcher.Matcher
	excerptLen int
}

// NewRoundBuilder creates a RoundBuilder rendering rounds with mt.
func NewRoundBuilder(mt *matcher.Matcher, excerptLen int) *RoundBuilder {
	if mt == nil {
		mt = matcher.New(nil, matcher.DefaultOptions())
	}
	if excerptLen <= 0 {
		excerptLen = DefaultOptions().PromptExcerptLen
	}
	return &RoundBuilder{matcher: mt, excerptLen: excerptLen}
}

// Granularity implements Builder.
func (b *RoundBuilder) Granularity() models.Granularity { return models.GranularityRound }

// Build implements Builder.
func (b *RoundBuilder) Build(s models.Session) []models.Document {
	var docs []models.Document
	for _, t := range s.Turns {
		for n, round := range SplitRounds(t.Events) {
			actions := b.matcher.Match(round, false)
			if len(actions) == 0 {
				continue
			}
			var lines, tags []string
			for _, a := range actions {
				lines = append(lines, a.Lines(false)...)
			}
			for _, ev := range round {
				if id := toolID(ev); id != "" {
					tags = append(tags, TagTool+id)
				}
			}
			text := strings.Join(lines, "\n")
			if t.Prompt != "" {
				text += "\n\nPrompt: " + normalize.Truncate(strings.Join(strings.Fields(t.Prompt), " "), b.excerptLen)
			}
			if doc, ok := newDocument(s, t, derivedID(t.RequestID, "round", n), models.GranularityRound, text, tags); ok {
				docs = append(docs, doc)
			}
		}
	}
	return docs
}

// SplitRounds partitions events at every prepareToolInvocation. Events before
// the first one belong to no round.
func SplitRounds(events []models.ToolEvent) [][]models.ToolEvent {
	var rounds [][]models.ToolEvent
	start := -1
	for i, ev := range events {
		if !ev.Is(models.KindPrepareToolInvocation) {
			continue
		}
		if start >= 0 {
			rounds = append(rounds, events[start:i])
		}
		start = i
	}
	if start >= 0 {
		rounds = append(rounds, events[start:])
	}
	return rounds
}

func toolID(ev models.ToolEvent) string {
	for _, k := range []string{"toolName", "toolId", "tool"} {
		if s, ok := ev.Fields[k].(string); ok && s != "" {
			return s
		}
	}
	if tsd, ok := ev.Fields["toolSpecificData"].(map[string]any); ok {
		for _, k := range []string{"toolId", "toolName"} {
			if s, ok := tsd[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
