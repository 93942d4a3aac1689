package gorm

import (
	"database/sql"
	"strings"

	"github.com/goccy/go-json"
)

// maxInParams keeps IN lists below SQLite's bound-parameter limit.
const maxInParams = 500

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// chunks splits ids into slices of at most maxInParams.
func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > maxInParams {
		out = append(out, ids[:maxInParams])
		ids = ids[maxInParams:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// marshalNull encodes v as JSON, returning NULL for nil values.
func marshalNull(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// jsonText returns a JSON column as text, or "" when it holds nothing.
func jsonText(raw sql.NullString) string {
	if !raw.Valid {
		return ""
	}
	s := strings.TrimSpace(raw.String)
	if s == "" || s == "null" || s == "{}" {
		return ""
	}
	return s
}
