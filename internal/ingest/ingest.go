// Package ingest decodes normalized chat-session exports into catalog sessions.
//
// An export is a JSON array of sessions, or a single session object. Each
// turn carries its raw event stream as a list of payloads in "events".
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/thebtf/chatlens/internal/workspace"
	"github.com/thebtf/chatlens/pkg/models"
)

// ErrEmptyExport means the input held no sessions.
var ErrEmptyExport = errors.New("export contains no sessions")

type toolOutputRecord struct {
	Payload any    `json:"payload"`
	Kind    string `json:"kind"`
}

type turnRecord struct {
	Metadata     map[string]any     `json:"metadata"`
	RequestID    string             `json:"request_id"`
	AgentID      string             `json:"agent_id"`
	Prompt       string             `json:"prompt"`
	Response     string             `json:"response"`
	Status       string             `json:"status"`
	ErrorDetails string             `json:"error_details"`
	Events       []any              `json:"events"`
	ToolOutputs  []toolOutputRecord `json:"tool_outputs"`
	TimestampMs  int64              `json:"timestamp_ms"`
	Canceled     bool               `json:"canceled"`
}

type sessionRecord struct {
	SessionID            string       `json:"session_id"`
	WorkspaceFingerprint string       `json:"workspace_fingerprint"`
	WorkspaceRoot        string       `json:"workspace_root"`
	Requester            string       `json:"requester"`
	Responder            string       `json:"responder"`
	InitialLocation      string       `json:"initial_location"`
	Title                string       `json:"title"`
	Turns                []turnRecord `json:"turns"`
	CreatedAtMs          int64        `json:"created_at_ms"`
	LastMessageAtMs      int64        `json:"last_message_at_ms"`
}

var knownStatuses = map[string]models.TurnStatus{
	strings.ToLower(string(models.TurnStatusOK)):         models.TurnStatusOK,
	strings.ToLower(string(models.TurnStatusCanceled)):   models.TurnStatusCanceled,
	strings.ToLower(string(models.TurnStatusTerminated)): models.TurnStatusTerminated,
	strings.ToLower(string(models.TurnStatusError)):      models.TurnStatusError,
	strings.ToLower(string(models.TurnStatusNoResponse)): models.TurnStatusNoResponse,
}

// Decode reads one export.
func Decode(r io.Reader) ([]models.Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyExport
	}

	var records []sessionRecord
	if data[0] == '[' {
		err = json.Unmarshal(data, &records)
	} else {
		var one sessionRecord
		err = json.Unmarshal(data, &one)
		records = []sessionRecord{one}
	}
	if err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyExport
	}

	sessions := make([]models.Session, 0, len(records))
	for i, rec := range records {
		s, err := rec.toSession()
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (rec sessionRecord) toSession() (models.Session, error) {
	if strings.TrimSpace(rec.SessionID) == "" {
		return models.Session{}, errors.New("session_id is required")
	}
	fp := strings.ToLower(strings.TrimSpace(rec.WorkspaceFingerprint))
	if fp == "" && rec.WorkspaceRoot != "" {
		fp = workspace.Fingerprint(rec.WorkspaceRoot)
	}

	s := models.Session{
		ID:                   rec.SessionID,
		WorkspaceFingerprint: fp,
		Requester:            rec.Requester,
		Responder:            rec.Responder,
		InitialLocation:      rec.InitialLocation,
		Title:                rec.Title,
		CreatedAtMs:          rec.CreatedAtMs,
		LastMessageAtMs:      rec.LastMessageAtMs,
		Turns:                make([]models.Turn, 0, len(rec.Turns)),
	}
	for i, t := range rec.Turns {
		s.Turns = append(s.Turns, t.toTurn(rec.SessionID, i))
	}
	return s, nil
}

func (t turnRecord) toTurn(sessionID string, index int) models.Turn {
	id := t.RequestID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/turn/%d", sessionID, index))).String()
	}

	events := make([]models.ToolEvent, 0, len(t.Events))
	for i, item := range t.Events {
		fields, ok := item.(map[string]any)
		if !ok {
			fields = map[string]any{"value": item}
		}
		events = append(events, models.NewToolEvent(i, fields))
	}

	outputs := make([]models.ToolOutput, 0, len(t.ToolOutputs))
	for i, o := range t.ToolOutputs {
		outputs = append(outputs, models.ToolOutput{Index: i, Kind: o.Kind, Payload: o.Payload})
	}

	status, ok := knownStatuses[strings.ToLower(strings.TrimSpace(t.Status))]
	if !ok {
		responded := t.Response != "" || len(outputs) > 0
		status = models.ClassifyStatus(t.Canceled, responded, t.ErrorDetails)
	}

	return models.Turn{
		Metadata:    t.Metadata,
		RequestID:   id,
		AgentID:     t.AgentID,
		Prompt:      t.Prompt,
		Response:    t.Response,
		Status:      status,
		Events:      events,
		ToolOutputs: outputs,
		Index:       index,
		TimestampMs: t.TimestampMs,
	}
}
