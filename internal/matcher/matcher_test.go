package matcher

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/chatlens/pkg/models"
)

func decodeEvents(t *testing.T, raw string) []models.ToolEvent {
	t.Helper()
	var payloads []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payloads))
	events := make([]models.ToolEvent, len(payloads))
	for i, p := range payloads {
		events[i] = models.NewToolEvent(i, p)
	}
	return events
}

const applyPatchEvents = `[
	{"kind": "prepareToolInvocation", "toolName": "copilot_applyPatch"},
	{"kind": "toolInvocationSerialized", "toolId": "copilot_applyPatch", "invocationMessage": "Applying patch"},
	{"kind": "textEditGroup", "uri": {"fsPath": "/repo/internal/a.go"},
	 "edits": [[{"text": "x\ny", "range": {"startLineNumber": 1, "endLineNumber": 3}}]]},
	{"kind": "undoStop", "id": "u1"}
]`

// MatcherSuite exercises the default registry end to end.
type MatcherSuite struct {
	suite.Suite
	m *Matcher
}

func TestMatcherSuite(t *testing.T) {
	suite.Run(t, new(MatcherSuite))
}

func (s *MatcherSuite) SetupTest() {
	s.m = New(nil, DefaultOptions())
}

func (s *MatcherSuite) TestApplyPatchFollowedByUnrelatedEvent() {
	events := decodeEvents(s.T(), `[
		{"kind": "prepareToolInvocation", "toolName": "copilot_applyPatch"},
		{"kind": "toolInvocationSerialized", "toolId": "copilot_applyPatch"},
		{"kind": "textEditGroup", "uri": {"fsPath": "/repo/internal/a.go"},
		 "edits": [[{"text": "x\ny", "range": {"startLineNumber": 1, "endLineNumber": 3}}]]},
		{"kind": "undoStop", "id": "u1"},
		{"kind": "inlineReference", "inlineReference": {"name": "b.go", "location": {"uri": {"fsPath": "/repo/b.go"}}}}
	]`)

	actions := s.m.Match(events, false)
	s.Require().Len(actions, 2)

	s.Equal("Apply Patch", actions[0].Title)
	s.Equal("/repo/internal/a.go", actions[0].Summary)
	s.Equal([]string{"Files: 1", "Lines: +2 / -2"}, actions[0].Details)

	s.Equal("Inline reference", actions[1].Title)
	s.Equal("b.go — /repo/b.go", actions[1].Summary)
}

func (s *MatcherSuite) TestApplyPatchWithoutUndoStop() {
	events := decodeEvents(s.T(), applyPatchEvents)[:3]
	events = append(events, models.NewToolEvent(3, map[string]any{"kind": "somethingElse"}))

	actions := s.m.Match(events, false)
	s.Require().Len(actions, 2)
	s.Equal("Apply Patch", actions[0].Title)
	s.Equal("Raw somethingElse", actions[1].Title)
}

func (s *MatcherSuite) TestApplyPatchManyFiles() {
	events := decodeEvents(s.T(), `[
		{"kind": "prepareToolInvocation", "toolName": "copilot_applyPatch"},
		{"kind": "toolInvocationSerialized", "toolName": "applyPatch"},
		{"kind": "textEditGroup", "edits": [
			{"uri": {"fsPath": "/r/d.go"}, "text": "a"},
			{"uri": {"fsPath": "/r/a.go"}, "text": "b"},
			{"uri": {"fsPath": "/r/c.go"}, "text": "c"},
			{"uri": {"fsPath": "/r/b.go"}, "text": "d"},
			{"uri": {"fsPath": "/r/a.go"}, "text": "e"}
		]}
	]`)

	actions := s.m.Match(events, false)
	s.Require().Len(actions, 1)
	s.Equal("/r/a.go, /r/b.go, /r/c.go, +1 more", actions[0].Summary)
	s.Equal([]string{"Files: 4", "Lines: +5 / -0"}, actions[0].Details)
}

func (s *MatcherSuite) TestApplyPatchEmptyEditsFallsThrough() {
	events := decodeEvents(s.T(), `[
		{"kind": "prepareToolInvocation", "toolName": "copilot_applyPatch"},
		{"kind": "toolInvocationSerialized", "toolName": "copilot_applyPatch"},
		{"kind": "textEditGroup", "edits": []}
	]`)

	// Every event is noise once the pattern is rejected.
	s.Empty(s.m.Match(events, false))

	raw := s.m.Match(events, true)
	s.Require().Len(raw, 3)
	s.Equal([]string{"Raw prepareToolInvocation", "Raw toolInvocationSerialized", "Raw textEditGroup"}, Titles(raw))
}

func (s *MatcherSuite) TestNoiseSuppressedOnlyInCompactMode() {
	events := decodeEvents(s.T(), `[
		{"kind": "thinking", "value": "hmm"},
		{"kind": "mcpServersStarting"},
		{"content": "role only"},
		{"kind": "codeblockUri", "uri": {"path": "/x"}}
	]`)

	s.Empty(s.m.Match(events, false))

	raw := s.m.Match(events, true)
	s.Equal([]string{"Raw thinking", "Raw mcpServersStarting", "Raw unknown", "Raw codeblockUri"}, Titles(raw))
}

func (s *MatcherSuite) TestFallbackSummaryIsCompactJSON() {
	events := decodeEvents(s.T(), `[{"kind": "fooBar", "x": 1, "encrypted": "secret"}]`)
	actions := s.m.Match(events, false)
	s.Require().Len(actions, 1)
	s.Equal("Raw fooBar", actions[0].Title)
	s.Equal(`{"kind":"fooBar","x":1}`, actions[0].Summary)

	long := decodeEvents(s.T(), `[{"kind": "big", "data": "`+strings.Repeat("z", 300)+`"}]`)
	actions = s.m.Match(long, false)
	s.Require().Len(actions, 1)
	s.Len([]rune(actions[0].Summary), 120)
}

func (s *MatcherSuite) TestRawModeKeepsWindowsAndEmbedsPrunedPayloads() {
	events := decodeEvents(s.T(), applyPatchEvents)
	compact := s.m.Match(events, false)
	raw := s.m.Match(events, true)

	s.Require().Len(compact, 1)
	s.Require().Len(raw, 1)
	s.Equal(compact[0].Summary, raw[0].Summary)
	s.Nil(compact[0].RawPayloads)

	s.Require().Len(raw[0].RawPayloads, 4)
	s.NotContains(raw[0].RawPayloads[1], "invocationMessage")
	s.NotContains(raw[0].RawPayloads[3], "undoStop")
	s.Equal("u1", raw[0].RawPayloads[3]["id"])

	// Source events are untouched.
	s.Contains(events[1].Fields, "invocationMessage")
}

func (s *MatcherSuite) TestReadFile() {
	tests := []struct {
		name    string
		tsd     string
		summary string
		details []string
	}{
		{name: "range", tsd: `{"filePath": "/a/b/c/d/e.go", "offset": 10, "limit": 5}`, summary: "b/c/d/e.go", details: []string{"Lines 10-14"}},
		{name: "offset only", tsd: `{"filePath": "x.go", "offset": 3}`, summary: "x.go", details: []string{"Starting at line 3"}},
		{name: "limit only", tsd: `{"filePath": "x.go", "limit": 40}`, summary: "x.go", details: []string{"First 40 lines"}},
		{name: "no data", tsd: `{}`, summary: "file"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			events := decodeEvents(s.T(), `[
				{"kind": "prepareToolInvocation", "toolName": "read_file"},
				{"kind": "toolInvocationSerialized", "toolId": "read_file", "toolSpecificData": `+tt.tsd+`}
			]`)
			actions := s.m.Match(events, false)
			s.Require().Len(actions, 1)
			s.Equal("Read", actions[0].Title)
			s.Equal(tt.summary, actions[0].Summary)
			s.Equal(tt.details, actions[0].Details)
		})
	}
}

func (s *MatcherSuite) TestGrepSearch() {
	query := strings.Repeat("q", 70)
	events := decodeEvents(s.T(), `[
		{"kind": "prepareToolInvocation", "toolName": "grep_search"},
		{"kind": "toolInvocationSerialized", "toolId": "grep_search",
		 "toolSpecificData": {"query": "`+query+`", "includePattern": "**/*.go", "isRegexp": true}}
	]`)

	actions := s.m.Match(events, false)
	s.Require().Len(actions, 1)
	s.Equal("Search", actions[0].Title)
	s.Equal("`"+strings.Repeat("q", 57)+"...`", actions[0].Summary)
	s.Equal([]string{"in `**/*.go`", "(regex)"}, actions[0].Details)
}

func (s *MatcherSuite) TestInlineReferenceWithoutLocationFallsBack() {
	events := decodeEvents(s.T(), `[{"kind": "inlineReference", "inlineReference": {"name": "thing"}}]`)
	actions := s.m.Match(events, false)
	s.Require().Len(actions, 1)
	s.Equal("Raw inlineReference", actions[0].Title)
}

func (s *MatcherSuite) TestInlineReferenceBareURI() {
	events := decodeEvents(s.T(), `[{"kind": "inlineReference", "inlineReference": {"scheme": "file", "fsPath": "/w/x.md", "path": "/w/x.md"}}]`)
	actions := s.m.Match(events, false)
	s.Require().Len(actions, 1)
	s.Equal("Inline reference", actions[0].Title)
	s.Equal("/w/x.md", actions[0].Summary)
}

func (s *MatcherSuite) TestMismatchedToolIDsDoNotPair() {
	events := decodeEvents(s.T(), `[
		{"kind": "prepareToolInvocation", "toolName": "read_file"},
		{"kind": "toolInvocationSerialized", "toolId": "grep_search"}
	]`)
	s.Empty(s.m.Match(events, false))
}

func (s *MatcherSuite) TestEmptyStream() {
	s.Empty(s.m.Match(nil, false))
	s.Empty(s.m.Match([]models.ToolEvent{}, true))
}

func TestRegistryOrdersByWindow(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"apply_patch", "terminal", "read_file", "grep_search", "inline_reference"}, r.Names())

	custom := NewRegistry(
		Pattern{Name: "one", Window: 1},
		Pattern{Name: "wide", Window: 9},
		Pattern{Name: "two", Window: 2},
	)
	assert.Equal(t, []string{"wide", "two", "one"}, custom.Names())
	assert.Equal(t, MaxWindow, custom.Patterns()[0].Window)
}

func TestCustomPatternConsumesWindow(t *testing.T) {
	pair := Pattern{
		Name:   "pair",
		Window: 2,
		Match: func(w []models.ToolEvent) int {
			if len(w) == 2 && w[0].Is("a") && w[1].Is("b") {
				return 2
			}
			return 0
		},
		Render: func(consumed, lookahead []models.ToolEvent) models.RenderedAction {
			return models.RenderedAction{Title: "Pair", Summary: strings.Repeat("+", len(lookahead))}
		},
	}
	m := New(NewRegistry(pair), DefaultOptions())
	events := []models.ToolEvent{
		models.NewToolEvent(0, map[string]any{"kind": "a"}),
		models.NewToolEvent(1, map[string]any{"kind": "b"}),
		models.NewToolEvent(2, map[string]any{"kind": "a"}),
	}

	actions := m.Match(events, false)
	require.Len(t, actions, 2)
	assert.Equal(t, "Pair", actions[0].Title)
	assert.Equal(t, "+", actions[0].Summary)
	assert.Equal(t, "Raw a", actions[1].Title)
}

func TestCustomNoiseKinds(t *testing.T) {
	m := New(nil, Options{NoiseKinds: []string{"chatter"}})
	events := []models.ToolEvent{
		models.NewToolEvent(0, map[string]any{"kind": "chatter"}),
		models.NewToolEvent(1, map[string]any{"kind": "thinking"}),
	}
	assert.Equal(t, []string{"Raw thinking"}, Titles(m.Match(events, false)))
}

func TestCountTitles(t *testing.T) {
	counts := CountTitles([]models.RenderedAction{{Title: "Read"}, {Title: "Read"}, {Title: "Terminal"}, {Title: " "}})
	assert.Equal(t, map[string]int{"Read": 2, "Terminal": 1}, counts)
}
