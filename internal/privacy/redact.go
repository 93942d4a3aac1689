package privacy

import (
	"reflect"
)

// DefaultMaxDepth bounds payload traversal. Event payloads from the chat
// client nest a handful of levels; anything deeper is cut.
const DefaultMaxDepth = 64

// Markers substituted where traversal stops.
const (
	CycleMarker     = "<cycle>"
	TruncatedMarker = "<truncated>"
)

// DefaultRedactKeys are payload keys that carry opaque or noisy client state.
var DefaultRedactKeys = []string{
	"encrypted",
	"undoStop",
	"codeblockUri",
	"invocationMessage",
	"autoApproveInfo",
	"prepareToolInvocation",
}

// Pruner returns deep copies of decoded payloads with matching map keys removed.
type Pruner struct {
	keys     map[string]struct{}
	maxDepth int
}

// NewPruner creates a pruner for keys. maxDepth <= 0 selects DefaultMaxDepth.
func NewPruner(keys []string, maxDepth int) *Pruner {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &Pruner{keys: set, maxDepth: maxDepth}
}

// PruneKeys is a convenience wrapper using DefaultMaxDepth.
func PruneKeys(value any, keys []string) any {
	return NewPruner(keys, 0).Prune(value)
}

// Prune copies value, dropping redacted keys at every level. Containers that
// appear inside themselves are replaced by CycleMarker; containers nested
// deeper than the depth limit are replaced by TruncatedMarker.
func (p *Pruner) Prune(value any) any {
	return p.walk(value, 0, map[uintptr]bool{})
}

// PruneMap is Prune for the common top-level map case.
func (p *Pruner) PruneMap(m map[string]any) map[string]any {
	out, _ := p.Prune(m).(map[string]any)
	return out
}

func (p *Pruner) walk(value any, depth int, onPath map[uintptr]bool) any {
	switch v := value.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		if depth >= p.maxDepth {
			return TruncatedMarker
		}
		ptr := reflect.ValueOf(v).Pointer()
		if onPath[ptr] {
			return CycleMarker
		}
		onPath[ptr] = true
		defer delete(onPath, ptr)

		out := make(map[string]any, len(v))
		for key, child := range v {
			if _, drop := p.keys[key]; drop {
				continue
			}
			out[key] = p.walk(child, depth+1, onPath)
		}
		return out
	case []any:
		if v == nil {
			return v
		}
		if depth >= p.maxDepth {
			return TruncatedMarker
		}
		var ptr uintptr
		if len(v) > 0 {
			ptr = reflect.ValueOf(v).Pointer()
			if onPath[ptr] {
				return CycleMarker
			}
			onPath[ptr] = true
			defer delete(onPath, ptr)
		}
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = p.walk(child, depth+1, onPath)
		}
		return out
	default:
		return value
	}
}
