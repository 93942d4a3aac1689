package models

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// RenderedAction is the compact, human-readable form of one tool-call episode.
// Annotations are appended to the head line by the motif engine; nothing else
// is mutated once a block has been annotated.
type RenderedAction struct {
	Title       string           `json:"title"`
	Summary     string           `json:"summary"`
	Details     []string         `json:"details,omitempty"`
	RawPayloads []map[string]any `json:"raw_payloads,omitempty"`
	Annotations []string         `json:"annotations,omitempty"`
}

// PrimaryText is the text fingerprinted for repetition detection.
func (a RenderedAction) PrimaryText() string {
	return a.Title + " " + a.Summary
}

// HeadLine returns the block's first line including any annotations.
// Format: "**Title** — summary — Seen before (1× prior)"
func (a RenderedAction) HeadLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** — %s", a.Title, a.Summary)
	for _, ann := range a.Annotations {
		b.WriteString(" ")
		b.WriteString(ann)
	}
	return b.String()
}

// Lines renders the block as markdown lines. When includeRaw is set the raw
// payloads are embedded as fenced JSON after the details.
func (a RenderedAction) Lines(includeRaw bool) []string {
	lines := []string{a.HeadLine()}
	for _, d := range a.Details {
		if d != "" {
			lines = append(lines, d)
		}
	}
	if !includeRaw {
		return lines
	}
	for _, payload := range a.RawPayloads {
		lines = append(lines, "```json")
		lines = append(lines, MarshalIndented(payload))
		lines = append(lines, "```")
	}
	return lines
}

// Clone returns a deep-enough copy for annotation: slices are copied,
// payload maps are shared since they are never mutated.
func (a RenderedAction) Clone() RenderedAction {
	c := a
	c.Details = append([]string(nil), a.Details...)
	c.RawPayloads = append([]map[string]any(nil), a.RawPayloads...)
	c.Annotations = append([]string(nil), a.Annotations...)
	return c
}

// MarshalIndented encodes v as two-space indented JSON without HTML escaping.
// Encoding failures fall back to fmt's representation.
func MarshalIndented(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// MarshalCompact encodes v as single-line JSON without HTML escaping.
func MarshalCompact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(buf.String(), "\n")
}
