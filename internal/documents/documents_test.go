package documents

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/chatlens/pkg/models"
)

func events(t *testing.T, raw string) []models.ToolEvent {
	t.Helper()
	var payloads []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payloads))
	out := make([]models.ToolEvent, len(payloads))
	for i, p := range payloads {
		out[i] = models.NewToolEvent(i, p)
	}
	return out
}

func fixtureSession(t *testing.T) models.Session {
	return models.Session{
		ID:                   "s1",
		WorkspaceFingerprint: "ws1",
		Turns: []models.Turn{{
			RequestID:   "r1",
			AgentID:     "agent",
			Prompt:      "why does the autosummarization regression test fail?",
			Response:    "It fails because <private>token=abc</private>the stub is stale.",
			Status:      models.TurnStatusOK,
			TimestampMs: 1700000000000,
			Metadata: map[string]any{
				"toolCallRounds": []any{map[string]any{"command": "pytest -q", "exitCode": float64(1)}},
			},
			ToolOutputs: []models.ToolOutput{
				{Kind: "terminal", Index: 0, Payload: map[string]any{"stdout": "FAILED test_x\nline2", "status": "done"}},
			},
			Events: events(t, `[
				{"kind": "thinking", "value": "hmm"},
				{"kind": "prepareToolInvocation", "toolName": "run_in_terminal"},
				{"kind": "toolInvocationSerialized", "toolId": "run_in_terminal", "toolSpecificData": {
					"commandLine": {"original": "pytest -q"},
					"toolResult": {"exitCode": 1, "stderr": "E AssertionError: boom"}}},
				{"kind": "prepareToolInvocation", "toolName": "read_file"},
				{"kind": "toolInvocationSerialized", "toolId": "read_file", "toolSpecificData": {"filePath": "/repo/a.go"}}
			]`),
		}},
	}
}

func TestComposeTurnText(t *testing.T) {
	text := ComposeTurnText("p", "r", "make", 2, true, []string{"terminal: out"})
	assert.Equal(t, "Command: make (exit_code=2)\n\nPrompt: p\n\nResponse: r\n\nTool Output: terminal: out", text)

	assert.Equal(t, "Command: make\n\nPrompt: p", ComposeTurnText("p", "", "make", 0, false, nil))
	assert.Equal(t, "", ComposeTurnText("", "", "", 0, false, nil))
}

func TestTurnBuilder(t *testing.T) {
	docs := NewTurnBuilder().Build(fixtureSession(t))
	require.Len(t, docs, 1)
	d := docs[0]

	assert.Equal(t, "r1", d.ID)
	assert.Equal(t, "s1", d.SessionID)
	assert.Equal(t, "ws1", d.WorkspaceFingerprint)
	assert.Equal(t, models.GranularityTurn, d.Granularity)
	assert.True(t, strings.HasPrefix(d.Text, "Command: pytest -q (exit_code=1)\n\nPrompt: why does"))
	assert.Contains(t, d.Text, "Tool Output: terminal: FAILED test_x line2")
	assert.NotContains(t, d.Text, "token=abc")
	assert.NotContains(t, d.Text, "done")
	assert.Equal(t, []string{"granularity:turn", "agent:agent", "status:OK", "exit:1", "tool:terminal"}, d.Tags)
}

func TestSplitRounds(t *testing.T) {
	rounds := SplitRounds(fixtureSession(t).Turns[0].Events)
	require.Len(t, rounds, 2)
	assert.Len(t, rounds[0], 2)
	assert.Len(t, rounds[1], 2)
	assert.Equal(t, 1, rounds[0][0].Position)

	assert.Empty(t, SplitRounds(events(t, `[{"kind": "thinking"}]`)))
}

func TestRoundBuilder(t *testing.T) {
	docs := NewRoundBuilder(nil, 0).Build(fixtureSession(t))
	require.Len(t, docs, 2)

	assert.Equal(t, models.GranularityRound, docs[0].Granularity)
	assert.Contains(t, docs[0].Text, "**Terminal** — pytest -q → exit 1")
	assert.Contains(t, docs[0].Text, "E AssertionError: boom")
	assert.Contains(t, docs[0].Text, "Prompt: why does the autosummarization")
	assert.Contains(t, docs[0].Tags, "tool:run_in_terminal")
	assert.Contains(t, docs[1].Text, "**Read** — /repo/a.go")

	assert.NotEqual(t, docs[0].ID, docs[1].ID)
	again := NewRoundBuilder(nil, 0).Build(fixtureSession(t))
	assert.Equal(t, docs[0].ID, again[0].ID)
}

func TestToolBuilder(t *testing.T) {
	docs := NewToolBuilder().Build(fixtureSession(t))
	require.Len(t, docs, 3)

	assert.Equal(t, "Tool Output: terminal\nFAILED test_x\nline2", docs[0].Text)
	assert.Contains(t, docs[0].Tags, "tool:terminal")

	assert.True(t, strings.HasPrefix(docs[1].Text, "Tool Call: run_in_terminal"))
	assert.Contains(t, docs[1].Text, "pytest -q")
	assert.Contains(t, docs[1].Tags, "exit:1")
	assert.Contains(t, docs[2].Text, "/repo/a.go")

	for _, d := range docs {
		assert.Equal(t, models.GranularityTool, d.Granularity)
		assert.Equal(t, "s1", d.SessionID)
	}
}

func TestManagerGranularitySelection(t *testing.T) {
	sessions := []models.Session{fixtureSession(t)}

	all := DefaultManager(nil, DefaultOptions())
	assert.Len(t, all.Build(sessions), 6)
	assert.Equal(t, []models.Granularity{models.GranularityTurn, models.GranularityRound, models.GranularityTool}, all.Granularities())

	only := DefaultManager(nil, Options{Granularities: []models.Granularity{models.GranularityTurn}})
	docs := only.Build(sessions)
	require.Len(t, docs, 1)
	assert.Equal(t, models.GranularityTurn, docs[0].Granularity)
}

func TestEmptyDocumentsSkipped(t *testing.T) {
	s := models.Session{ID: "s", Turns: []models.Turn{{RequestID: "r", Prompt: "<private>all</private>"}}}
	assert.Empty(t, NewTurnBuilder().Build(s))
}

func TestExtractors(t *testing.T) {
	meta := map[string]any{"b": map[string]any{"lastCommand": " ls "}, "a": []any{map[string]any{"code": "3"}}}
	assert.Equal(t, "ls", ExtractCommand(meta))
	code, ok := ExtractExitCode(meta)
	require.True(t, ok)
	assert.Equal(t, 3, code)

	_, ok = ExtractExitCode(map[string]any{"x": "y"})
	assert.False(t, ok)

	assert.Equal(t, "tool: raw text", SummariseToolOutput("", nil, "raw\ntext"))
	long := SummariseToolOutput("k", strings.Repeat("a", 300), "")
	assert.Len(t, long, len("k: ")+160)
	assert.True(t, strings.HasSuffix(long, "..."))
}
