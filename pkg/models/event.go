// Package models contains domain models for chatlens.
package models

// Event kinds emitted by the chat client's tool-invocation protocol.
const (
	KindPrepareToolInvocation    = "prepareToolInvocation"
	KindToolInvocationSerialized = "toolInvocationSerialized"
	KindTextEditGroup            = "textEditGroup"
	KindUndoStop                 = "undoStop"
	KindInlineReference          = "inlineReference"
	KindCodeblockURI             = "codeblockUri"
	KindThinking                 = "thinking"
	KindMCPServersStarting       = "mcpServersStarting"
	KindElicitation              = "elicitation"
	KindProgressTaskSerialized   = "progressTaskSerialized"
)

// ToolEvent is one discriminated record from a turn's raw event stream.
// Events are produced upstream and treated as read-only.
type ToolEvent struct {
	Fields   map[string]any `json:"fields"`
	Kind     string         `json:"kind"`
	Position int            `json:"position"`
}

// NewToolEvent builds an event from a decoded payload, reading the
// discriminator from its "kind" field. A nil payload yields an empty map.
func NewToolEvent(position int, fields map[string]any) ToolEvent {
	if fields == nil {
		fields = map[string]any{}
	}
	kind, _ := fields["kind"].(string)
	return ToolEvent{Kind: kind, Fields: fields, Position: position}
}

// Is reports whether the event carries the given kind.
func (e ToolEvent) Is(kind string) bool {
	return e.Kind == kind
}
