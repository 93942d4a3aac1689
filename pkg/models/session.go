package models

import "strings"

// TurnStatus classifies how a turn ended.
type TurnStatus string

const (
	TurnStatusOK         TurnStatus = "OK"
	TurnStatusCanceled   TurnStatus = "Canceled"
	TurnStatusTerminated TurnStatus = "Terminated"
	TurnStatusError      TurnStatus = "Error"
	TurnStatusNoResponse TurnStatus = "No response"
)

// ToolOutput is a tool result row captured for a turn.
type ToolOutput struct {
	Payload any    `json:"payload,omitempty"`
	Kind    string `json:"kind"`
	RawJSON string `json:"-"`
	Index   int    `json:"index"`
}

// Turn is one request/response exchange inside a session.
type Turn struct {
	Metadata    map[string]any `json:"metadata,omitempty"`
	RequestID   string         `json:"request_id"`
	AgentID     string         `json:"agent_id,omitempty"`
	Prompt      string         `json:"prompt"`
	Response    string         `json:"response"`
	Status      TurnStatus     `json:"status"`
	Events      []ToolEvent    `json:"events,omitempty"`
	ToolOutputs []ToolOutput   `json:"tool_outputs,omitempty"`
	Index       int            `json:"index"`
	TimestampMs int64          `json:"timestamp_ms,omitempty"`
}

// Session is an ordered list of turns recorded in one workspace.
type Session struct {
	ID                   string `json:"session_id"`
	WorkspaceFingerprint string `json:"workspace_fingerprint"`
	Requester            string `json:"requester,omitempty"`
	Responder            string `json:"responder,omitempty"`
	InitialLocation      string `json:"initial_location,omitempty"`
	Title                string `json:"title,omitempty"`
	Turns                []Turn `json:"turns"`
	CreatedAtMs          int64  `json:"created_at_ms,omitempty"`
	LastMessageAtMs      int64  `json:"last_message_at_ms,omitempty"`
}

// Message roles used by transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single prose entry of a transcript.
type Message struct {
	Role  string `json:"role"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Transcript is the prose view of a session: user and assistant messages in turn order.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

// Transcript flattens the session's prompts and responses into messages.
// Empty prompts or responses are skipped.
func (s Session) Transcript(userLabel, assistantLabel string) Transcript {
	t := Transcript{SessionID: s.ID, Messages: make([]Message, 0, len(s.Turns)*2)}
	for _, turn := range s.Turns {
		if turn.Prompt != "" {
			t.Messages = append(t.Messages, Message{Role: RoleUser, Label: userLabel, Text: turn.Prompt})
		}
		if turn.Response != "" {
			t.Messages = append(t.Messages, Message{Role: RoleAssistant, Label: assistantLabel, Text: turn.Response})
		}
	}
	return t
}

// ClassifyStatus derives a turn's status from its cancel flag, whether any
// response or result was recorded, and the lowercased error details text.
func ClassifyStatus(canceled, responded bool, errorDetails string) TurnStatus {
	errorDetails = strings.ToLower(strings.TrimSpace(errorDetails))
	switch {
	case canceled:
		return TurnStatusCanceled
	case errorDetails != "" && strings.Contains(errorDetails, "cancel"):
		return TurnStatusCanceled
	case errorDetails != "" && (strings.Contains(errorDetails, "terminate") ||
		strings.Contains(errorDetails, "timeout") || strings.Contains(errorDetails, "abort")):
		return TurnStatusTerminated
	case errorDetails != "":
		return TurnStatusError
	case !responded:
		return TurnStatusNoResponse
	}
	return TurnStatusOK
}
