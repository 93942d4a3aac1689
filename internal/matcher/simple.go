package matcher

import (
	"fmt"
	"strings"

	"github.com/thebtf/chatlens/pkg/models"
	"github.com/thebtf/chatlens/pkg/normalize"
)

const (
	toolReadFile   = "read_file"
	toolGrepSearch = "grep_search"
	maxQueryLen    = 60
)

// pairPattern matches prepare → invocation for a single tool id.
func pairPattern(name, toolID string, render func(models.ToolEvent) models.RenderedAction) Pattern {
	return Pattern{
		Name:   name,
		Window: 2,
		Match: func(window []models.ToolEvent) int {
			if len(window) < 2 {
				return 0
			}
			if !isInvocation(window[0], models.KindPrepareToolInvocation, toolID) ||
				!isInvocation(window[1], models.KindToolInvocationSerialized, toolID) {
				return 0
			}
			return 2
		},
		Render: func(consumed, _ []models.ToolEvent) models.RenderedAction {
			return render(consumed[1])
		},
	}
}

// ReadFilePattern renders read_file calls as a short path plus line range.
func ReadFilePattern() Pattern {
	return pairPattern("read_file", toolReadFile, func(ev models.ToolEvent) models.RenderedAction {
		tsd := mapField(ev.Fields, "toolSpecificData")
		summary := "file"
		if p, ok := str(tsd, "filePath"); ok {
			summary = normalize.ShortPath(p)
		}

		var details []string
		offset, hasOffset := intField(tsd, "offset")
		limit, hasLimit := intField(tsd, "limit")
		switch {
		case hasOffset && hasLimit:
			details = append(details, fmt.Sprintf("Lines %d-%d", offset, offset+limit-1))
		case hasOffset:
			details = append(details, fmt.Sprintf("Starting at line %d", offset))
		case hasLimit:
			details = append(details, fmt.Sprintf("First %d lines", limit))
		}
		return models.RenderedAction{Title: "Read", Summary: summary, Details: details}
	})
}

// GrepSearchPattern renders grep_search calls as the query plus scope flags.
func GrepSearchPattern() Pattern {
	return pairPattern("grep_search", toolGrepSearch, func(ev models.ToolEvent) models.RenderedAction {
		tsd := mapField(ev.Fields, "toolSpecificData")
		summary := "pattern search"
		if q, ok := str(tsd, "query"); ok {
			summary = "`" + normalize.Truncate(q, maxQueryLen) + "`"
		}

		var details []string
		if inc, ok := str(tsd, "includePattern"); ok {
			details = append(details, "in `"+inc+"`")
		}
		if truthy(tsd["isRegexp"]) {
			details = append(details, "(regex)")
		}
		return models.RenderedAction{Title: "Search", Summary: summary, Details: details}
	})
}

// InlineReferencePattern renders an inline reference as label plus location.
// References whose location cannot be resolved are left to the fallback.
func InlineReferencePattern() Pattern {
	return Pattern{
		Name:   "inline_reference",
		Window: 1,
		Match: func(window []models.ToolEvent) int {
			if len(window) == 0 || !window[0].Is(models.KindInlineReference) {
				return 0
			}
			if inlineLocation(window[0]) == "" {
				return 0
			}
			return 1
		},
		Render: func(consumed, _ []models.ToolEvent) models.RenderedAction {
			ref := mapField(consumed[0].Fields, "inlineReference")
			summary := inlineLocation(consumed[0])
			if label, ok := str(ref, "name"); ok && strings.TrimSpace(label) != "" {
				summary = strings.TrimSpace(label) + " — " + summary
			}
			return models.RenderedAction{Title: "Inline reference", Summary: summary}
		},
	}
}

// inlineLocation resolves the display location of an inline reference. The
// reference is either a Location {uri, range} or a bare URI object.
func inlineLocation(ev models.ToolEvent) string {
	ref := mapField(ev.Fields, "inlineReference")
	if ref == nil {
		return ""
	}
	if loc := mapField(ref, "location"); loc != nil {
		if uri := mapField(loc, "uri"); uri != nil {
			return normalize.FormatURI(uri)
		}
		return models.MarshalCompact(loc)
	}
	if uri := mapField(ref, "uri"); uri != nil {
		return normalize.FormatURI(uri)
	}
	if hasAny(ref, "fsPath", "external") || (hasAny(ref, "scheme") && hasAny(ref, "path")) {
		return normalize.FormatURI(ref)
	}
	return ""
}
