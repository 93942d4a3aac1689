// Package lod produces the lowest level-of-detail transcript: turn order and
// prose intact, fenced and triple-quoted block interiors collapsed.
package lod

import (
	"regexp"
	"strings"

	"github.com/thebtf/chatlens/pkg/models"
)

// Ellipsis replaces the interior of a collapsed block.
const Ellipsis = "..."

var (
	fenceOpenRe  = regexp.MustCompile("^([ \t]*)(`{3,}|~{3,})(.*)$")
	tripleOpenRe = regexp.MustCompile(`^([ \t]*)("""|''')[ \t]*$`)
)

type fence struct {
	indent string
	char   byte
	length int
	info   string
}

// Collapse replaces the interior of every fenced or triple-quoted block in
// text with an indented ellipsis, keeping the fence lines and language hint.
// Text with an unterminated block is returned unchanged. Collapse is
// idempotent.
func Collapse(text string) string {
	if text == "" {
		return text
	}
	trailing := strings.HasSuffix(text, "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	out, ok := collapseLines(lines)
	if !ok {
		return text
	}
	result := strings.Join(out, "\n")
	if trailing {
		result += "\n"
	}
	return result
}

func collapseLines(lines []string) ([]string, bool) {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if f, ok := parseFence(line); ok {
			end := findFenceClose(lines, i+1, f)
			if end < 0 {
				return nil, false
			}
			out = appendBlock(out, lines, i, end, f.indent)
			i = end
			continue
		}

		if m := tripleOpenRe.FindStringSubmatch(line); m != nil {
			end := findTripleClose(lines, i+1, m[2])
			if end < 0 {
				return nil, false
			}
			out = appendBlock(out, lines, i, end, m[1])
			i = end
			continue
		}

		out = append(out, line)
	}
	return out, true
}

// appendBlock emits the opener, a single ellipsis line and the closer.
// Empty blocks are kept as they are.
func appendBlock(out, lines []string, open, end int, indent string) []string {
	out = append(out, lines[open])
	if end > open+1 {
		out = append(out, indent+Ellipsis)
	}
	return append(out, lines[end])
}

func parseFence(line string) (fence, bool) {
	m := fenceOpenRe.FindStringSubmatch(line)
	if m == nil {
		return fence{}, false
	}
	f := fence{indent: m[1], char: m[2][0], length: len(m[2]), info: strings.TrimSpace(m[3])}
	// A backtick run followed by more backticks on the same line is inline code.
	if f.char == '`' && strings.Contains(f.info, "`") {
		return fence{}, false
	}
	return f, true
}

// findFenceClose returns the index of the line closing open, or -1. Nested
// fences of the same character that carry an info string raise the depth;
// bare fences lower it.
func findFenceClose(lines []string, from int, open fence) int {
	depth := 0
	for j := from; j < len(lines); j++ {
		inner, ok := parseFence(lines[j])
		if !ok || inner.char != open.char {
			continue
		}
		if inner.info == "" && inner.length >= open.length {
			if depth == 0 {
				return j
			}
			depth--
			continue
		}
		if inner.info != "" && inner.length == open.length {
			depth++
		}
	}
	return -1
}

func findTripleClose(lines []string, from int, quote string) int {
	for j := from; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == quote {
			return j
		}
	}
	return -1
}

// CollapseTranscript collapses every message, preserving count and order.
func CollapseTranscript(t models.Transcript) models.Transcript {
	out := models.Transcript{SessionID: t.SessionID, Messages: make([]models.Message, len(t.Messages))}
	for i, m := range t.Messages {
		m.Text = Collapse(m.Text)
		out.Messages[i] = m
	}
	return out
}
