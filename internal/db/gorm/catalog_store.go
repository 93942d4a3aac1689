package gorm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/chatlens/pkg/models"
)

// SessionFilter scopes LoadSessions. Empty fields match everything.
type SessionFilter struct {
	Agent      string
	Workspaces []string
	Sessions   []string
}

// requestOrder puts undated requests last.
const requestOrder = "timestamp_ms IS NULL, timestamp_ms, request_id"

// LoadSessions returns sessions ordered by creation time, each with its
// turns in timestamp order. Rows with malformed JSON still load; the bad
// column is treated as absent. With an agent filter, sessions left without
// turns are dropped.
func (s *Store) LoadSessions(ctx context.Context, filter SessionFilter) ([]models.Session, error) {
	q := s.DB.WithContext(ctx).Model(&ChatSession{})
	if len(filter.Workspaces) > 0 {
		q = q.Where("workspace_fingerprint IN ?", filter.Workspaces)
	}
	if len(filter.Sessions) > 0 {
		q = q.Where("session_id IN ?", filter.Sessions)
	}
	var rows []ChatSession
	if err := q.Order("creation_date_ms IS NULL, creation_date_ms, session_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.SessionID
	}
	requests, err := s.loadRequests(ctx, ids, filter.Agent)
	if err != nil {
		return nil, err
	}
	requestIDs := make([]string, len(requests))
	for i, r := range requests {
		requestIDs[i] = r.RequestID
	}
	responses, err := s.loadResponses(ctx, requestIDs)
	if err != nil {
		return nil, err
	}
	outputs, err := s.loadToolOutputs(ctx, requestIDs)
	if err != nil {
		return nil, err
	}

	turns := make(map[string][]models.Turn, len(rows))
	for _, r := range requests {
		t := toModelTurn(r, responses[r.RequestID], outputs[r.RequestID])
		t.Index = len(turns[r.SessionID])
		turns[r.SessionID] = append(turns[r.SessionID], t)
	}

	sessions := make([]models.Session, 0, len(rows))
	for _, r := range rows {
		ts := turns[r.SessionID]
		if filter.Agent != "" && len(ts) == 0 {
			continue
		}
		sessions = append(sessions, toModelSession(r, ts))
	}
	return sessions, nil
}

// LoadSession returns one session, or nil when it does not exist.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*models.Session, error) {
	sessions, err := s.LoadSessions(ctx, SessionFilter{Sessions: []string{sessionID}})
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

func (s *Store) loadRequests(ctx context.Context, sessionIDs []string, agent string) ([]Request, error) {
	var all []Request
	for _, chunk := range chunks(sessionIDs) {
		q := s.DB.WithContext(ctx).Where("session_id IN ?", chunk)
		if agent != "" {
			q = q.Where("agent_id = ?", agent)
		}
		var rows []Request
		if err := q.Order(requestOrder).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load requests: %w", err)
		}
		all = append(all, rows...)
	}
	return all, nil
}

func (s *Store) loadResponses(ctx context.Context, requestIDs []string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, chunk := range chunks(requestIDs) {
		var rows []Response
		err := s.DB.WithContext(ctx).
			Where("request_id IN ?", chunk).
			Order("request_id, response_index").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("load responses: %w", err)
		}
		for _, r := range rows {
			if strings.TrimSpace(r.Value) != "" {
				out[r.RequestID] = append(out[r.RequestID], r.Value)
			}
		}
	}
	return out, nil
}

func (s *Store) loadToolOutputs(ctx context.Context, requestIDs []string) (map[string][]ToolOutputRow, error) {
	out := make(map[string][]ToolOutputRow)
	for _, chunk := range chunks(requestIDs) {
		var rows []ToolOutputRow
		err := s.DB.WithContext(ctx).
			Where("request_id IN ?", chunk).
			Order("request_id, output_index").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("load tool outputs: %w", err)
		}
		for _, r := range rows {
			out[r.RequestID] = append(out[r.RequestID], r)
		}
	}
	return out, nil
}

// CountRequests returns the number of requests in the catalog.
func (s *Store) CountRequests(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&Request{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return n, nil
}

// ListSessionIDs returns every session id, newest message first.
func (s *Store) ListSessionIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).
		Model(&ChatSession{}).
		Order("last_message_date_ms IS NULL, last_message_date_ms DESC, session_id").
		Pluck("session_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

// SaveSession replaces a session and all of its turns in one transaction.
func (s *Store) SaveSession(ctx context.Context, session models.Session) error {
	if err := s.writable(); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var oldIDs []string
		if err := tx.Model(&Request{}).Where("session_id = ?", session.ID).Pluck("request_id", &oldIDs).Error; err != nil {
			return err
		}
		for _, chunk := range chunks(oldIDs) {
			if err := tx.Where("request_id IN ?", chunk).Delete(&Response{}).Error; err != nil {
				return err
			}
			if err := tx.Where("request_id IN ?", chunk).Delete(&ToolOutputRow{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("session_id = ?", session.ID).Delete(&Request{}).Error; err != nil {
			return err
		}

		row := ChatSession{
			SessionID:            session.ID,
			WorkspaceFingerprint: session.WorkspaceFingerprint,
			RequesterUsername:    nullString(session.Requester),
			ResponderUsername:    nullString(session.Responder),
			InitialLocation:      nullString(session.InitialLocation),
			CreationDateMs:       nullInt64(session.CreatedAtMs),
			LastMessageDateMs:    nullInt64(session.LastMessageAtMs),
			CustomTitle:          nullString(session.Title),
			IsImported:           true,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}

		for _, t := range session.Turns {
			req, err := fromModelTurn(session, t)
			if err != nil {
				return fmt.Errorf("encode request %s: %w", t.RequestID, err)
			}
			if err := tx.Create(&req).Error; err != nil {
				return err
			}
			if t.Response != "" {
				if err := tx.Create(&Response{RequestID: t.RequestID, ResponseIndex: 0, Value: t.Response}).Error; err != nil {
					return err
				}
			}
			for _, out := range t.ToolOutputs {
				payload := nullString(out.RawJSON)
				if out.Payload != nil {
					if payload, err = marshalNull(out.Payload); err != nil {
						return fmt.Errorf("encode tool output %s/%d: %w", t.RequestID, out.Index, err)
					}
				}
				row := ToolOutputRow{RequestID: t.RequestID, OutputIndex: out.Index, ToolKind: nullString(out.Kind), PayloadJSON: payload}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetMetadata returns a catalog_metadata value, or "" when unset.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var rows []CatalogMetadata
	if err := s.DB.WithContext(ctx).Where(&CatalogMetadata{Key: key}).Limit(1).Find(&rows).Error; err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Value, nil
}

// SetMetadata upserts a catalog_metadata value.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	if err := s.writable(); err != nil {
		return err
	}
	row := CatalogMetadata{Key: key, Value: value}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func toModelSession(r ChatSession, turns []models.Turn) models.Session {
	return models.Session{
		ID:                   r.SessionID,
		WorkspaceFingerprint: r.WorkspaceFingerprint,
		Requester:            r.RequesterUsername.String,
		Responder:            r.ResponderUsername.String,
		InitialLocation:      r.InitialLocation.String,
		Title:                r.CustomTitle.String,
		CreatedAtMs:          r.CreationDateMs.Int64,
		LastMessageAtMs:      r.LastMessageDateMs.Int64,
		Turns:                turns,
	}
}

func toModelTurn(r Request, responses []string, outputs []ToolOutputRow) models.Turn {
	t := models.Turn{
		RequestID:   r.RequestID,
		AgentID:     r.AgentID.String,
		Prompt:      r.PromptText.String,
		Response:    strings.Join(responses, "\n\n"),
		TimestampMs: r.TimestampMs.Int64,
	}

	if r.ResultMetadataJSON.Valid && r.ResultMetadataJSON.String != "" {
		if err := json.Unmarshal([]byte(r.ResultMetadataJSON.String), &t.Metadata); err != nil {
			log.Debug().Err(err).Str("request", r.RequestID).Msg("Skipping malformed result metadata")
			t.Metadata = nil
		}
	}

	if r.ResponseEventsJSON.Valid && r.ResponseEventsJSON.String != "" {
		var raw []any
		if err := json.Unmarshal([]byte(r.ResponseEventsJSON.String), &raw); err != nil {
			log.Debug().Err(err).Str("request", r.RequestID).Msg("Skipping malformed response events")
		}
		for i, item := range raw {
			fields, ok := item.(map[string]any)
			if !ok {
				fields = map[string]any{"value": item}
			}
			t.Events = append(t.Events, models.NewToolEvent(i, fields))
		}
	}

	for _, o := range outputs {
		out := models.ToolOutput{Index: o.OutputIndex, Kind: o.ToolKind.String, RawJSON: o.PayloadJSON.String}
		if o.PayloadJSON.Valid && o.PayloadJSON.String != "" {
			if err := json.Unmarshal([]byte(o.PayloadJSON.String), &out.Payload); err != nil {
				out.Payload = nil
			}
		}
		t.ToolOutputs = append(t.ToolOutputs, out)
	}

	responded := len(responses) > 0 || len(t.Events) > 0 || t.Metadata != nil
	t.Status = models.ClassifyStatus(r.IsCanceled, responded, jsonText(r.ErrorDetailsJSON))
	return t
}

func fromModelTurn(s models.Session, t models.Turn) (Request, error) {
	req := Request{
		RequestID:            t.RequestID,
		SessionID:            s.ID,
		WorkspaceFingerprint: s.WorkspaceFingerprint,
		TimestampMs:          nullInt64(t.TimestampMs),
		PromptText:           nullString(t.Prompt),
		AgentID:              nullString(t.AgentID),
		IsCanceled:           t.Status == models.TurnStatusCanceled,
	}
	var err error
	if len(t.Metadata) > 0 {
		if req.ResultMetadataJSON, err = marshalNull(t.Metadata); err != nil {
			return req, err
		}
	}
	if len(t.Events) > 0 {
		fields := make([]map[string]any, len(t.Events))
		for i, ev := range t.Events {
			fields[i] = ev.Fields
		}
		if req.ResponseEventsJSON, err = marshalNull(fields); err != nil {
			return req, err
		}
	}
	switch t.Status {
	case models.TurnStatusTerminated:
		req.ErrorDetailsJSON = nullString(`{"message":"terminated"}`)
	case models.TurnStatusError:
		req.ErrorDetailsJSON = nullString(`{"message":"error"}`)
	}
	return req, nil
}
