package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Granularity is the scope of text a Document covers.
type Granularity string

const (
	// GranularityTurn covers a whole request/response exchange.
	GranularityTurn Granularity = "turn"
	// GranularityRound covers one tool-invocation round inside a turn.
	GranularityRound Granularity = "round"
	// GranularityTool covers a single tool call or tool output.
	GranularityTool Granularity = "tool"
)

// Document is the unit indexed by the recall engine. Every document carries
// its workspace fingerprint so filtering never re-derives it.
type Document struct {
	ID                   string      `json:"document_id"`
	SessionID            string      `json:"session_id"`
	RequestID            string      `json:"request_id"`
	WorkspaceFingerprint string      `json:"workspace_fingerprint"`
	AgentID              string      `json:"agent_id,omitempty"`
	Granularity          Granularity `json:"granularity"`
	Text                 string      `json:"text"`
	Tags                 []string    `json:"tags,omitempty"`
	TimestampMs          int64       `json:"timestamp_ms,omitempty"`
}

// TimestampISO renders the document timestamp as RFC 3339 UTC, or "" when unknown.
func (d Document) TimestampISO() string {
	if d.TimestampMs <= 0 {
		return ""
	}
	return time.UnixMilli(d.TimestampMs).UTC().Format(time.RFC3339)
}

// JSONStringArray is a []string persisted as a JSON text column.
type JSONStringArray []string

// Scan implements sql.Scanner.
func (a *JSONStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type for JSONStringArray: %T", value)
	}
	if len(data) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(data, a)
}

// Value implements driver.Valuer.
func (a JSONStringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
