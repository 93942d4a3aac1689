package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		set1     map[string]bool
		set2     map[string]bool
		expected float64
	}{
		{
			name:     "identical sets",
			set1:     map[string]bool{"a": true, "b": true, "c": true},
			set2:     map[string]bool{"a": true, "b": true, "c": true},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			set1:     map[string]bool{"a": true, "b": true},
			set2:     map[string]bool{"c": true, "d": true},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			set1:     map[string]bool{"a": true, "b": true, "c": true},
			set2:     map[string]bool{"b": true, "c": true, "d": true},
			expected: 0.5, // intersection=2, union=4
		},
		{
			name:     "empty sets",
			set1:     map[string]bool{},
			set2:     map[string]bool{},
			expected: 1.0,
		},
		{
			name:     "one empty set",
			set1:     map[string]bool{"a": true},
			set2:     map[string]bool{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := JaccardSimilarity(tt.set1, tt.set2)
			assert.InDelta(t, tt.expected, result, 0.001)
		})
	}
}

func TestTokenSet(t *testing.T) {
	set := TokenSet("terminal `npm test` → exit #")
	assert.True(t, set["terminal"])
	assert.True(t, set["`npm"])
	assert.True(t, set["test`"])
	assert.True(t, set["#"])
	assert.False(t, set["→"])

	assert.Empty(t, TokenSet(""))
	assert.True(t, TokenSet("read <path>")["<path>"])
}

func TestBestMatch(t *testing.T) {
	candidates := []Candidate{
		NewCandidate("terminal `go test ./...` → exit #"),
		NewCandidate("read <path> lines #-#"),
		NewCandidate("terminal `go build` → ✓"),
	}

	t.Run("match above threshold", func(t *testing.T) {
		query := TokenSet("terminal `go test ./...` → ✓")
		got, score, ok := BestMatch(query, candidates, 0.5)
		require.True(t, ok)
		assert.Equal(t, "terminal `go test ./...` → exit #", got.Fingerprint)
		assert.InDelta(t, 4.0/6.0, score, 0.001)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		query := map[string]bool{"a": true, "b": true}
		c := []Candidate{{Fingerprint: "x", Tokens: map[string]bool{"a": true, "c": true, "b": true, "d": true}}}
		_, score, ok := BestMatch(query, c, 0.5)
		assert.True(t, ok)
		assert.InDelta(t, 0.5, score, 0.0001)

		_, _, ok = BestMatch(query, c, 0.51)
		assert.False(t, ok)
	})

	t.Run("tie broken lexically", func(t *testing.T) {
		query := map[string]bool{"a": true}
		c := []Candidate{
			{Fingerprint: "zz", Tokens: map[string]bool{"a": true}},
			{Fingerprint: "aa", Tokens: map[string]bool{"a": true}},
		}
		got, _, ok := BestMatch(query, c, 0.5)
		require.True(t, ok)
		assert.Equal(t, "aa", got.Fingerprint)
	})

	t.Run("empty query", func(t *testing.T) {
		_, _, ok := BestMatch(map[string]bool{}, candidates, 0)
		assert.False(t, ok)
	})
}

func TestClusterFingerprints(t *testing.T) {
	groups := ClusterFingerprints([]string{
		"terminal `go test` → exit #",
		"read <path>",
		"terminal `go test` → ✓",
	}, 0.5)

	require.Len(t, groups, 2)
	assert.Equal(t, []string{"read <path>"}, groups[0])
	assert.Equal(t, []string{"terminal `go test` → exit #", "terminal `go test` → ✓"}, groups[1])

	assert.Empty(t, ClusterFingerprints(nil, 0.5))
}
