package documents

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thebtf/chatlens/internal/privacy"
	"github.com/thebtf/chatlens/pkg/models"
)

// TurnBuilder emits one document per request/response exchange.
type TurnBuilder struct{}

// NewTurnBuilder creates a TurnBuilder.
func NewTurnBuilder() *TurnBuilder { return &TurnBuilder{} }

// Granularity implements Builder.
func (b *TurnBuilder) Granularity() models.Granularity { return models.GranularityTurn }

// Build implements Builder.
func (b *TurnBuilder) Build(s models.Session) []models.Document {
	var docs []models.Document
	for _, t := range s.Turns {
		command := ExtractCommand(t.Metadata)
		exitCode, hasExit := ExtractExitCode(t.Metadata)

		var tags []string
		summaries := make([]string, 0, len(t.ToolOutputs))
		for _, out := range t.ToolOutputs {
			summaries = append(summaries, SummariseToolOutput(out.Kind, out.Payload, out.RawJSON))
			if out.Kind != "" {
				tags = append(tags, TagTool+out.Kind)
			}
		}
		if hasExit {
			tags = append(tags, TagExit+strconv.Itoa(exitCode))
		}

		text := ComposeTurnText(privacy.Clean(t.Prompt), privacy.Clean(t.Response), command, exitCode, hasExit, summaries)
		if doc, ok := newDocument(s, t, t.RequestID, models.GranularityTurn, text, tags); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// ComposeTurnText lays out a turn document as blank-line separated sections.
func ComposeTurnText(prompt, response, command string, exitCode int, hasExit bool, toolSummaries []string) string {
	var sections []string
	if command != "" {
		if hasExit {
			sections = append(sections, fmt.Sprintf("Command: %s (exit_code=%d)", command, exitCode))
		} else {
			sections = append(sections, "Command: "+command)
		}
	}
	if prompt != "" {
		sections = append(sections, "Prompt: "+prompt)
	}
	if response != "" {
		sections = append(sections, "Response: "+response)
	}
	for _, s := range toolSummaries {
		sections = append(sections, "Tool Output: "+s)
	}
	return strings.Join(sections, "\n\n")
}
