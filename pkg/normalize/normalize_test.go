package normalize

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase and whitespace", input: "  Terminal   `LS`\t→ ✓ ", expected: "terminal `ls` → ✓"},
		{name: "digits collapse", input: "exit 127 after 30 ms", expected: "exit # after # ms"},
		{name: "unix path", input: "Read src/app/main.go", expected: "read <path>"},
		{name: "absolute path", input: "cat /etc/hosts now", expected: "cat <path> now"},
		{name: "windows path", input: `Read C:\Users\me\file.txt`, expected: "read <path>"},
		{name: "uri", input: "open https://example.com/a?b=1 please", expected: "open <uri> please"},
		{name: "file uri", input: "file:///tmp/x.md", expected: "<uri>"},
		{name: "uuid", input: "session 123e4567-e89b-12d3-a456-426614174000", expected: "session <uuid>"},
		{name: "hex id", input: "commit 3f2a9c1b7e", expected: "commit <hex>"},
		{name: "seen before marker", input: "**Terminal** — ls — Seen before (2× prior)", expected: "**terminal** — ls"},
		{name: "seen across marker", input: "Read a — Seen across 3 sessions (5× total, similarity=0.80)", expected: "read a"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fingerprint(tt.input))
		})
	}
}

func TestFingerprintIdempotent(t *testing.T) {
	inputs := []string{
		"Terminal `pytest tests/test_example.py::test_example -q` → exit 1",
		"Apply Patch internal/a.go, internal/b.go, +2 more",
		"open https://x.io/a)/b and c:/dir/file",
		"deadbeef 12345678 abc123def456",
		"http://a<b/c",
		"Read /home/u/.config/x.json — Seen before (4× prior) — Seen across 2 sessions (3× total, similarity=1.00)",
		"UPPER\n\nlines\r\nhere",
		"Terminal ls — Seen before\n(1× prior)",
		"K\t— seen across\tseen across >>d",
	}
	for _, in := range inputs {
		once := Fingerprint(in)
		assert.Equal(t, once, Fingerprint(once), in)
	}
}

func TestFingerprintIdempotentRandomized(t *testing.T) {
	fragments := []string{
		"Terminal", "ls", "READ", " ", "  ", "\t", "\n", "\r\n", "—", " — ", "seen", "Seen", "before", "across",
		"(1× prior)", "(3× total, similarity=0.50)", "/tmp/x", "a/b", "c:\\dir", "https://h.io/p", "file:///y",
		"123e4567-e89b-12d3-a456-426614174000", "deadbeef01", "42", "#", "<path>", "`", "→", "✓", ">>", "k", "_",
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20000; i++ {
		var b strings.Builder
		for n := rng.Intn(12); n >= 0; n-- {
			b.WriteString(fragments[rng.Intn(len(fragments))])
		}
		in := b.String()
		once := Fingerprint(in)
		if !assert.Equal(t, once, Fingerprint(once), "input %q", in) {
			return
		}
	}
}

func TestMaskHexKeepsPureDigitsAndWords(t *testing.T) {
	assert.Equal(t, "12345678", MaskHex("12345678"))
	assert.Equal(t, "deadbeef", MaskHex("deadbeef"))
	assert.Equal(t, "<hex>", MaskHex("deadbeef01"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijkl", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "whatever", Truncate("whatever", 0))
}

func TestShortPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"a/b", "a/b"},
		{"/a/b/c", "/a/b/c"},
		{"/a/b/c/d/e", "b/c/d/e"},
		{"/home/user/project/src/pkg/file.go", "project/src/pkg/file.go"},
		{`C:\x\y`, `C:\x\y`},
		{`C:\a\b\c\d\e`, `b\c\d\e`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShortPath(tt.input))
		})
	}
}

func TestFormatURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      map[string]any
		expected string
	}{
		{name: "fsPath wins", uri: map[string]any{"fsPath": "/tmp/a.go", "path": "/x"}, expected: "/tmp/a.go"},
		{name: "external", uri: map[string]any{"external": "file:///tmp/b.go", "path": "/tmp/b.go"}, expected: "file:///tmp/b.go"},
		{name: "scheme with authority", uri: map[string]any{"scheme": "https", "authority": "host", "path": "/p"}, expected: "https://host/p"},
		{name: "scheme without authority", uri: map[string]any{"scheme": "untitled", "path": "Untitled-1"}, expected: "untitled:Untitled-1"},
		{name: "file scheme falls to path", uri: map[string]any{"scheme": "file", "path": "/tmp/c.go"}, expected: "/tmp/c.go"},
		{name: "json fallback", uri: map[string]any{"b": 1, "a": "x"}, expected: `{"a":"x","b":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatURI(tt.uri))
		})
	}
}

func TestExtractFSPath(t *testing.T) {
	assert.Equal(t, "/a", ExtractFSPath(map[string]any{"fsPath": "/a", "path": "/b"}))
	assert.Equal(t, "/tmp/x", ExtractFSPath(map[string]any{"external": "file:///tmp/x"}))
	assert.Equal(t, "/p", ExtractFSPath(map[string]any{"external": "https://x", "path": "/p"}))
	assert.Equal(t, "", ExtractFSPath(map[string]any{}))
}
