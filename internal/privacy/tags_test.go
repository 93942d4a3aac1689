package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPrivateTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no tags", input: "Hello world", expected: "Hello world"},
		{name: "single private tag", input: "Hello <private>secret</private> world", expected: "Hello  world"},
		{name: "multiline private tag", input: "Hello <private>\nmulti\nline\n</private> world", expected: "Hello  world"},
		{name: "unmatched opening tag", input: "Hello <private>unclosed", expected: "Hello <private>unclosed"},
		{name: "case sensitive", input: "Hello <PRIVATE>x</PRIVATE>", expected: "Hello <PRIVATE>x</PRIVATE>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripPrivateTags(tt.input))
		})
	}
}

func TestStripRecallTags(t *testing.T) {
	wrapped := WrapRecall("score=0.9 doc=abc\n")
	assert.True(t, strings.HasPrefix(wrapped, RecallOpenTag+"\n"))
	assert.True(t, strings.HasSuffix(wrapped, "\n"+RecallCloseTag))

	assert.Equal(t, "before  after", StripRecallTags("before "+wrapped+" after"))
}

func TestIsEntirelyPrivate(t *testing.T) {
	assert.True(t, IsEntirelyPrivate("  <private>secret</private>  "))
	assert.True(t, IsEntirelyPrivate(""))
	assert.False(t, IsEntirelyPrivate("Hello <private>secret</private>"))
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "Hello world", expected: "Hello world"},
		{name: "private and trim", input: "  Hello <private>s</private> world  ", expected: "Hello  world"},
		{name: "recall block", input: "\nA " + WrapRecall("old results") + " B\n", expected: "A  B"},
		{name: "entirely stripped", input: " <private>x</private> ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}
