package documents

import (
	"strconv"
	"strings"

	"github.com/thebtf/chatlens/internal/privacy"
	"github.com/thebtf/chatlens/pkg/models"
	"github.com/thebtf/chatlens/pkg/normalize"
)

const maxToolTextLen = 4000

// ToolBuilder emits one document per tool output row and per serialized
// tool invocation.
type ToolBuilder struct {
	pruner *privacy.Pruner
}

// NewToolBuilder creates a ToolBuilder.
func NewToolBuilder() *ToolBuilder {
	return &ToolBuilder{pruner: privacy.NewPruner(privacy.DefaultRedactKeys, 0)}
}

// Granularity implements Builder.
func (b *ToolBuilder) Granularity() models.Granularity { return models.GranularityTool }

// Build implements Builder.
func (b *ToolBuilder) Build(s models.Session) []models.Document {
	var docs []models.Document
	for _, t := range s.Turns {
		for _, out := range t.ToolOutputs {
			body := FlattenPayload(out.Payload)
			if out.Payload == nil {
				body = out.RawJSON
			}
			kind := out.Kind
			if kind == "" {
				kind = "tool"
			}
			text := "Tool Output: " + kind + "\n" + normalize.Truncate(body, maxToolTextLen)
			tags := []string{TagTool + kind}
			if code, ok := ExtractExitCode(out.Payload); ok {
				tags = append(tags, TagExit+strconv.Itoa(code))
			}
			if doc, ok := newDocument(s, t, derivedID(t.RequestID, "output", out.Index), models.GranularityTool, text, tags); ok {
				docs = append(docs, doc)
			}
		}

		for _, ev := range t.Events {
			if !ev.Is(models.KindToolInvocationSerialized) {
				continue
			}
			id := toolID(ev)
			if id == "" {
				id = "tool"
			}
			pruned := b.pruner.PruneMap(ev.Fields)
			parts := []string{"Tool Call: " + id}
			if msg := invocationText(ev.Fields); msg != "" {
				parts = append(parts, msg)
			}
			if body := FlattenPayload(pruned["toolSpecificData"]); body != "" {
				parts = append(parts, normalize.Truncate(body, maxToolTextLen))
			}
			tags := []string{TagTool + id}
			if code, ok := ExtractExitCode(ev.Fields["toolSpecificData"]); ok {
				tags = append(tags, TagExit+strconv.Itoa(code))
			}
			text := strings.Join(parts, "\n")
			if doc, ok := newDocument(s, t, derivedID(t.RequestID, "invocation", ev.Position), models.GranularityTool, text, tags); ok {
				docs = append(docs, doc)
			}
		}
	}
	return docs
}

func invocationText(fields map[string]any) string {
	switch v := fields["invocationMessage"].(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["value"].(string)
		return s
	}
	return ""
}
