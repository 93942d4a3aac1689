package gorm

import (
	"database/sql"

	"github.com/thebtf/chatlens/pkg/models"
)

// GORM Models

// ChatSession is one exported chat session.
type ChatSession struct {
	SessionID            string         `gorm:"column:session_id;primaryKey"`
	WorkspaceFingerprint string         `gorm:"index;not null;default:''"`
	Version              sql.NullInt64
	RequesterUsername    sql.NullString
	ResponderUsername    sql.NullString
	InitialLocation      sql.NullString
	CreationDateMs       sql.NullInt64  `gorm:"column:creation_date_ms"`
	LastMessageDateMs    sql.NullInt64  `gorm:"column:last_message_date_ms;index:idx_sessions_last_message,sort:desc"`
	CustomTitle          sql.NullString
	IsImported           bool           `gorm:"default:false"`
	SourceFile           sql.NullString
	RawJSON              sql.NullString `gorm:"column:raw_json;type:text"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

// Request is one turn of a session. ResponseEventsJSON holds the ordered
// tool-invocation event stream as a JSON array.
type Request struct {
	RequestID             string         `gorm:"column:request_id;primaryKey"`
	SessionID             string         `gorm:"column:session_id;index:idx_requests_session;not null"`
	WorkspaceFingerprint  string         `gorm:"index;not null;default:''"`
	TimestampMs           sql.NullInt64  `gorm:"column:timestamp_ms;index"`
	PromptText            sql.NullString `gorm:"type:text"`
	ResponseID            sql.NullString
	AgentID               sql.NullString `gorm:"column:agent_id;index"`
	IsCanceled            bool           `gorm:"default:false"`
	TimingFirstProgressMs sql.NullInt64  `gorm:"column:timing_first_progress_ms"`
	TimingTotalMs         sql.NullInt64  `gorm:"column:timing_total_ms"`
	ResultMetadataJSON    sql.NullString `gorm:"column:result_metadata_json;type:text"`
	ErrorDetailsJSON      sql.NullString `gorm:"column:error_details_json;type:text"`
	ResponseEventsJSON    sql.NullString `gorm:"column:response_events_json;type:text"`
}

func (Request) TableName() string { return "requests" }

// Response is one assistant text fragment of a request.
type Response struct {
	RequestID     string `gorm:"column:request_id;primaryKey"`
	ResponseIndex int    `gorm:"column:response_index;primaryKey;autoIncrement:false"`
	Value         string `gorm:"type:text"`
}

func (Response) TableName() string { return "responses" }

// ToolOutputRow is a tool result captured for a request.
type ToolOutputRow struct {
	RequestID   string         `gorm:"column:request_id;primaryKey"`
	OutputIndex int            `gorm:"column:output_index;primaryKey;autoIncrement:false"`
	ToolKind    sql.NullString
	PayloadJSON sql.NullString `gorm:"column:payload_json;type:text"`
}

func (ToolOutputRow) TableName() string { return "tool_outputs" }

// CatalogMetadata is a key/value row describing the catalog itself.
type CatalogMetadata struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"type:text"`
}

func (CatalogMetadata) TableName() string { return "catalog_metadata" }

// MotifIndexRow is one fingerprint of the cross-session motif index.
type MotifIndexRow struct {
	Fingerprint  string                 `gorm:"primaryKey"`
	Sessions     models.JSONStringArray `gorm:"type:text"`
	Occurrences  int                    `gorm:"not null;default:0"`
	SessionCount int                    `gorm:"not null;default:0;index:idx_motif_session_count,sort:desc"`
	UpdatedAtMs  int64                  `gorm:"column:updated_at_ms;not null"`
}

func (MotifIndexRow) TableName() string { return "motif_index" }

// RepeatFailureRow counts one failing terminal command per workspace and exit code.
type RepeatFailureRow struct {
	WorkspaceFingerprint string         `gorm:"primaryKey"`
	CommandHash          string         `gorm:"primaryKey"`
	ExitCode             int            `gorm:"primaryKey;autoIncrement:false"`
	CommandText          sql.NullString `gorm:"type:text"`
	OccurrenceCount      int            `gorm:"not null;default:0"`
	LastSeenMs           sql.NullInt64  `gorm:"column:last_seen_ms;index"`
	RequestID            sql.NullString
	SampleSnippet        sql.NullString
}

func (RepeatFailureRow) TableName() string { return "metrics_repeat_failures" }
