package matcher

import (
	"fmt"
	"strings"

	"github.com/thebtf/chatlens/pkg/models"
	"github.com/thebtf/chatlens/pkg/normalize"
)

const (
	toolRunInTerminal = "run_in_terminal"

	maxCommandLen = 100
	maxTailLines  = 6
	maxTailChars  = 700
)

var (
	stderrKeys = []string{"stderr", "error", "message", "lastLines", "content"}
	stdoutKeys = []string{"stdout", "output"}
)

// TerminalPattern matches prepare → invocation for run_in_terminal.
// The renderer peeks at the following event for interactive prompts.
func TerminalPattern() Pattern {
	return Pattern{
		Name:   "terminal",
		Window: 2,
		Match: func(window []models.ToolEvent) int {
			if len(window) < 2 {
				return 0
			}
			if !isInvocation(window[0], models.KindPrepareToolInvocation, toolRunInTerminal) ||
				!isInvocation(window[1], models.KindToolInvocationSerialized, toolRunInTerminal) {
				return 0
			}
			return 2
		},
		Render: renderTerminal,
	}
}

func renderTerminal(consumed, lookahead []models.ToolEvent) models.RenderedAction {
	invocation := consumed[1].Fields
	tsd := mapField(invocation, "toolSpecificData")

	summary := "Terminal command"
	if cmd, ok := str(mapField(tsd, "commandLine"), "original"); ok {
		summary = normalize.Truncate(cmd, maxCommandLen)
	}

	var details []string
	suffix := ""
	if result := terminalResult(tsd, invocation); result != nil {
		exitCode, hasExit := intField(result, "exitCode")
		if hasExit {
			if exitCode == 0 {
				suffix = " → ✓"
			} else {
				suffix = fmt.Sprintf(" → exit %d", exitCode)
			}
		}
		failed := (hasExit && exitCode != 0) || result["error"] != nil
		warnings := !failed && truthy(result["stderr"])
		if failed || warnings {
			details = append(details, tailDetails(result, warnings)...)
		}
		if ms, ok := durationMs(result); ok {
			details = append(details, fmt.Sprintf("Duration: %d ms", ms))
		}
	}

	if cwd := firstString(tsd, "cwd", "workingDirectory", "directory"); cwd != "" {
		details = append(details, "CWD: "+normalize.ShortPath(cwd))
	}
	if shell := firstString(tsd, "language", "shell"); shell != "" {
		details = append(details, "Shell: "+shell)
	}
	if explanation, ok := str(mapField(tsd, "autoApproveInfo"), "value"); ok && explanation != "" && suffix == "" {
		details = append(details, explanation)
	}
	if len(lookahead) > 0 && awaitingInput(lookahead[0]) {
		details = append(details, "Awaiting input (interactive)")
	}
	if msg := invocationMessage(invocation); msg != "" {
		details = append([]string{msg}, details...)
	}

	return models.RenderedAction{
		Title:   "Terminal",
		Summary: summary + suffix,
		Details: details,
	}
}

// TerminalFailure is a terminal command that finished with a non-zero exit.
type TerminalFailure struct {
	Command  string
	ExitCode int
}

// TerminalFailures returns the failed run_in_terminal invocations in events,
// in order. Invocations without a command or an exit code are skipped.
func TerminalFailures(events []models.ToolEvent) []TerminalFailure {
	var out []TerminalFailure
	for _, ev := range events {
		if !isInvocation(ev, models.KindToolInvocationSerialized, toolRunInTerminal) {
			continue
		}
		tsd := mapField(ev.Fields, "toolSpecificData")
		cmd, ok := str(mapField(tsd, "commandLine"), "original")
		cmd = strings.TrimSpace(cmd)
		if !ok || cmd == "" {
			continue
		}
		result := terminalResult(tsd, ev.Fields)
		if result == nil {
			continue
		}
		if code, ok := intField(result, "exitCode"); ok && code != 0 {
			out = append(out, TerminalFailure{Command: cmd, ExitCode: code})
		}
	}
	return out
}

// terminalResult locates the result object. Newer clients nest it under
// toolSpecificData.toolResult; older ones flatten it into toolSpecificData
// or the event itself.
func terminalResult(tsd, invocation map[string]any) map[string]any {
	if r := mapField(tsd, "toolResult"); r != nil {
		return r
	}
	resultKeys := []string{"exitCode", "stderr", "stdout"}
	if hasAny(tsd, resultKeys...) {
		return tsd
	}
	if hasAny(invocation, resultKeys...) {
		return invocation
	}
	return nil
}

// tailDetails returns the label line and indented tail lines, preferring
// stderr-like fields and falling back to stdout.
func tailDetails(result map[string]any, warnings bool) []string {
	source := "stderr"
	joined := joinTexts(result, stderrKeys)
	if joined == "" {
		source = "output"
		joined = joinTexts(result, stdoutKeys)
	}
	if joined == "" {
		return nil
	}

	lines := splitLines(joined)
	truncated := false
	if len(lines) > maxTailLines {
		truncated = true
		lines = lines[len(lines)-maxTailLines:]
	}
	if current := []rune(strings.Join(lines, "\n")); len(current) > maxTailChars {
		truncated = true
		lines = splitLines(string(current[len(current)-maxTailChars:]))
	}

	var label string
	switch {
	case warnings:
		label = fmt.Sprintf("Warnings (%s) tail", source)
	default:
		label = fmt.Sprintf("Last %s lines", source)
	}
	if truncated {
		label += " (truncated)"
	}
	out := []string{label + ":"}
	for _, ln := range lines {
		if strings.TrimSpace(ln) != "" {
			out = append(out, "  "+ln)
		}
	}
	return out
}

func joinTexts(result map[string]any, keys []string) string {
	var parts []string
	for _, k := range keys {
		v, ok := result[k]
		if !ok || !truthy(v) {
			continue
		}
		if t := flattenText(v); strings.TrimSpace(t) != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func durationMs(result map[string]any) (int, bool) {
	for _, k := range []string{"durationMs", "elapsedMs", "runtimeMs"} {
		if v, ok := asNumber(result[k]); ok {
			if v < 0 {
				return 0, false
			}
			return int(v), true
		}
	}
	start, okStart := asNumber(result["startTimeMs"])
	end, okEnd := asNumber(result["endTimeMs"])
	if okStart && okEnd && end >= start {
		return int(end - start), true
	}
	return 0, false
}

// awaitingInput detects an elicitation or progress event announcing that the
// terminal is waiting on the user.
func awaitingInput(ev models.ToolEvent) bool {
	if !ev.Is(models.KindElicitation) && !ev.Is(models.KindProgressTaskSerialized) {
		return false
	}
	var content any
	for _, k := range []string{"title", "content", "invocationMessage", "message"} {
		if truthy(ev.Fields[k]) {
			content = ev.Fields[k]
			break
		}
	}
	if m, ok := content.(map[string]any); ok {
		content = nil
		for _, k := range []string{"value", "text", "message"} {
			if truthy(m[k]) {
				content = m[k]
				break
			}
		}
	}
	s, ok := content.(string)
	return ok && strings.Contains(strings.ToLower(s), "awaiting input")
}

func invocationMessage(fields map[string]any) string {
	switch v := fields["invocationMessage"].(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["value"].(string)
		return s
	}
	return ""
}
