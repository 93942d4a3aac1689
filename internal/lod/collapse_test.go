package lod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/chatlens/pkg/models"
)

func TestCollapse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "hello\nworld",
			expected: "hello\nworld",
		},
		{
			name:     "backtick fence keeps language hint",
			input:    "Run this:\n```python\nprint(1)\nprint(2)\n```\nDone.",
			expected: "Run this:\n```python\n...\n```\nDone.",
		},
		{
			name:     "tilde fence",
			input:    "~~~\na\nb\n~~~",
			expected: "~~~\n...\n~~~",
		},
		{
			name:     "indented fence",
			input:    "- item\n  ```sh\n  ls\n  ```",
			expected: "- item\n  ```sh\n  ...\n  ```",
		},
		{
			name:     "trailing newline preserved",
			input:    "```\nx\n```\n",
			expected: "```\n...\n```\n",
		},
		{
			name:     "longer closer accepted",
			input:    "```\nx\n`````",
			expected: "```\n...\n`````",
		},
		{
			name:     "four backtick fence contains three backtick fence",
			input:    "````md\n```go\nfunc f() {}\n```\n````\nafter",
			expected: "````md\n...\n````\nafter",
		},
		{
			name:     "nested same length fence",
			input:    "```markdown\n```go\nx\n```\n```\ntail",
			expected: "```markdown\n...\n```\ntail",
		},
		{
			name:     "triple quotes",
			input:    "doc:\n    \"\"\"\n    body\n    \"\"\"\nend",
			expected: "doc:\n    \"\"\"\n    ...\n    \"\"\"\nend",
		},
		{
			name:     "single quote triple",
			input:    "'''\nx\n'''",
			expected: "'''\n...\n'''",
		},
		{
			name:     "empty block untouched",
			input:    "```\n```",
			expected: "```\n```",
		},
		{
			name:     "inline code is not a fence",
			input:    "use ```x``` inline\nnext",
			expected: "use ```x``` inline\nnext",
		},
		{
			name:     "multiple blocks",
			input:    "a\n```js\n1\n```\nb\n~~~\n2\n~~~\nc",
			expected: "a\n```js\n...\n```\nb\n~~~\n...\n~~~\nc",
		},
		{
			name:     "unterminated fence leaves message unchanged",
			input:    "ok\n```go\nfunc main() {",
			expected: "ok\n```go\nfunc main() {",
		},
		{
			name:     "unterminated after a good block leaves message unchanged",
			input:    "```\nx\n```\n'''\nnever closed",
			expected: "```\nx\n```\n'''\nnever closed",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Collapse(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, Collapse(got), "collapse must be idempotent")
		})
	}
}

func TestCollapseTranscriptPreservesOrder(t *testing.T) {
	in := models.Transcript{
		SessionID: "s",
		Messages: []models.Message{
			{Role: models.RoleUser, Label: "USER", Text: "fix\n```\nboom\n```"},
			{Role: models.RoleAssistant, Label: "Assistant", Text: "done"},
			{Role: models.RoleUser, Label: "USER", Text: "```\nunterminated"},
		},
	}

	out := CollapseTranscript(in)
	require.Len(t, out.Messages, 3)
	assert.Equal(t, "s", out.SessionID)
	assert.Equal(t, "fix\n```\n...\n```", out.Messages[0].Text)
	assert.Equal(t, "done", out.Messages[1].Text)
	assert.Equal(t, "```\nunterminated", out.Messages[2].Text)
	for i := range in.Messages {
		assert.Equal(t, in.Messages[i].Role, out.Messages[i].Role)
	}

	assert.Equal(t, out, CollapseTranscript(out))
	// Input is not modified.
	assert.Equal(t, "fix\n```\nboom\n```", in.Messages[0].Text)
}

func TestStatsSavings(t *testing.T) {
	s := Stats{TokensBefore: 200, TokensAfter: 50}
	assert.InDelta(t, 0.75, s.TokenSavings(), 1e-9)
	assert.Equal(t, 0.0, Stats{}.TokenSavings())
	assert.Contains(t, s.String(), "75.0% saved")
}

func TestCounterMeasure(t *testing.T) {
	c, err := NewCounter()
	require.NoError(t, err)

	n, err := c.Count("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	before := models.Transcript{Messages: []models.Message{{Text: "look:\n```go\nfunc main() { println(\"a long body of code\") }\n```"}}}
	after := CollapseTranscript(before)
	stats, err := c.Measure(before, after)
	require.NoError(t, err)
	assert.Greater(t, stats.BytesBefore, stats.BytesAfter)
	assert.Greater(t, stats.TokensBefore, stats.TokensAfter)
}
