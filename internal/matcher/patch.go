package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thebtf/chatlens/pkg/models"
	"github.com/thebtf/chatlens/pkg/normalize"
)

const (
	toolApplyPatch       = "copilot_applyPatch"
	toolApplyPatchLegacy = "applyPatch"
	maxPatchFilesShown   = 3
)

// ApplyPatchPattern matches prepare → invocation → edit group, with an
// optional trailing undo marker that is consumed along with them.
func ApplyPatchPattern() Pattern {
	return Pattern{
		Name:   "apply_patch",
		Window: 4,
		Match:  matchApplyPatch,
		Render: renderApplyPatch,
	}
}

func matchApplyPatch(window []models.ToolEvent) int {
	if len(window) < 3 {
		return 0
	}
	if !isInvocation(window[0], models.KindPrepareToolInvocation, toolApplyPatch) {
		return 0
	}
	if !isInvocation(window[1], models.KindToolInvocationSerialized, toolApplyPatch, toolApplyPatchLegacy) {
		return 0
	}
	if !window[2].Is(models.KindTextEditGroup) || len(sliceField(window[2].Fields, "edits")) == 0 {
		return 0
	}
	if len(window) > 3 && window[3].Is(models.KindUndoStop) {
		return 4
	}
	return 3
}

func renderApplyPatch(consumed, _ []models.ToolEvent) models.RenderedAction {
	group := consumed[2].Fields
	groupPath := ""
	if uri := mapField(group, "uri"); uri != nil {
		groupPath = normalize.ExtractFSPath(uri)
	}

	seen := map[string]bool{}
	var added, removed int
	for _, e := range flattenEdits(sliceField(group, "edits")) {
		path := groupPath
		if uri := mapField(e, "uri"); uri != nil {
			if p := normalize.ExtractFSPath(uri); p != "" {
				path = p
			}
		}
		if path != "" {
			seen[normalize.ShortPath(path)] = true
		}
		a, r := lineDelta(e)
		added += a
		removed += r
	}
	if len(seen) == 0 {
		seen["unknown file"] = true
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)

	shown := files
	if len(shown) > maxPatchFilesShown {
		shown = shown[:maxPatchFilesShown]
	}
	summary := strings.Join(shown, ", ")
	if more := len(files) - len(shown); more > 0 {
		summary += fmt.Sprintf(", +%d more", more)
	}

	return models.RenderedAction{
		Title:   "Apply Patch",
		Summary: summary,
		Details: []string{
			fmt.Sprintf("Files: %d", len(files)),
			fmt.Sprintf("Lines: +%d / -%d", added, removed),
		},
	}
}

// flattenEdits accepts both a flat list of edit objects and the nested
// list-of-lists shape some client versions write.
func flattenEdits(edits []any) []map[string]any {
	var out []map[string]any
	for _, e := range edits {
		switch v := e.(type) {
		case map[string]any:
			out = append(out, v)
		case []any:
			out = append(out, flattenEdits(v)...)
		}
	}
	return out
}

// lineDelta approximates added lines from the replacement text and removed
// lines from the replaced range.
func lineDelta(edit map[string]any) (added, removed int) {
	if text, ok := str(edit, "text"); ok && text != "" {
		added = strings.Count(text, "\n") + 1
	}
	rng := mapField(edit, "range")
	start, okStart := intField(rng, "startLineNumber")
	end, okEnd := intField(rng, "endLineNumber")
	if okStart && okEnd && end > start {
		removed = end - start
	}
	return added, removed
}
