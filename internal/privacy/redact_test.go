package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruneKeysRemovesNestedKeys(t *testing.T) {
	input := map[string]any{
		"kind":      "toolInvocationSerialized",
		"encrypted": "blob",
		"toolSpecificData": map[string]any{
			"commandLine":       map[string]any{"original": "ls"},
			"autoApproveInfo":   map[string]any{"value": true},
			"invocationMessage": "Running",
		},
		"list": []any{
			map[string]any{"undoStop": "x", "keep": 1},
			"plain",
		},
	}

	out, ok := PruneKeys(input, DefaultRedactKeys).(map[string]any)
	require.True(t, ok)

	assert.NotContains(t, out, "encrypted")
	tsd := out["toolSpecificData"].(map[string]any)
	assert.NotContains(t, tsd, "autoApproveInfo")
	assert.NotContains(t, tsd, "invocationMessage")
	assert.Equal(t, map[string]any{"original": "ls"}, tsd["commandLine"])

	list := out["list"].([]any)
	assert.Equal(t, map[string]any{"keep": 1}, list[0])
	assert.Equal(t, "plain", list[1])

	// Source is not modified.
	assert.Contains(t, input, "encrypted")
	assert.Contains(t, input["toolSpecificData"].(map[string]any), "autoApproveInfo")
}

func TestPruneKeysNoKeysStillCopies(t *testing.T) {
	input := map[string]any{"a": map[string]any{"b": 1}}
	out := PruneKeys(input, nil).(map[string]any)
	out["a"].(map[string]any)["b"] = 2
	assert.Equal(t, 1, input["a"].(map[string]any)["b"])
}

func TestPruneCycleGuard(t *testing.T) {
	m := map[string]any{"name": "root"}
	m["self"] = m

	out := PruneKeys(m, nil).(map[string]any)
	assert.Equal(t, "root", out["name"])
	assert.Equal(t, CycleMarker, out["self"])

	s := make([]any, 2)
	s[0] = "x"
	s[1] = s
	outSlice := PruneKeys(s, nil).([]any)
	assert.Equal(t, "x", outSlice[0])
	assert.Equal(t, CycleMarker, outSlice[1])
}

func TestPruneSharedChildIsNotACycle(t *testing.T) {
	shared := map[string]any{"v": 1}
	input := map[string]any{"a": shared, "b": shared}
	out := PruneKeys(input, nil).(map[string]any)
	assert.Equal(t, map[string]any{"v": 1}, out["a"])
	assert.Equal(t, map[string]any{"v": 1}, out["b"])
}

func TestPruneDepthLimit(t *testing.T) {
	deep := map[string]any{"leaf": true}
	for i := 0; i < 5; i++ {
		deep = map[string]any{"next": deep}
	}

	p := NewPruner(nil, 3)
	out := p.PruneMap(deep)
	level := out
	for i := 0; i < 2; i++ {
		level = level["next"].(map[string]any)
	}
	assert.Equal(t, TruncatedMarker, level["next"])
}

func TestPruneScalarsPassThrough(t *testing.T) {
	assert.Equal(t, "x", PruneKeys("x", DefaultRedactKeys))
	assert.Equal(t, 3.5, PruneKeys(3.5, DefaultRedactKeys))
	assert.Nil(t, PruneKeys(nil, DefaultRedactKeys))
}
