package gorm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/chatlens/internal/motif"
)

// LoadRepeatFailures returns the failure telemetry, most recent first.
// Catalogs created before the table existed yield no rows.
func (s *Store) LoadRepeatFailures(ctx context.Context) ([]motif.RepeatFailure, error) {
	if !s.DB.Migrator().HasTable(&RepeatFailureRow{}) {
		return nil, nil
	}
	var rows []RepeatFailureRow
	err := s.DB.WithContext(ctx).
		Order("last_seen_ms DESC").
		Order("workspace_fingerprint").
		Order("command_hash").
		Order("exit_code").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load repeat failures: %w", err)
	}
	out := make([]motif.RepeatFailure, len(rows))
	for i, r := range rows {
		out[i] = motif.RepeatFailure{
			WorkspaceFingerprint: r.WorkspaceFingerprint,
			CommandHash:          r.CommandHash,
			Command:              r.CommandText.String,
			ExitCode:             r.ExitCode,
			Occurrences:          r.OccurrenceCount,
			LastSeenMs:           r.LastSeenMs.Int64,
			RequestID:            r.RequestID.String,
			Snippet:              r.SampleSnippet.String,
		}
	}
	return out, nil
}

// ActionableThreshold derives the recall score threshold from the stored
// failure telemetry as of now.
func (s *Store) ActionableThreshold(ctx context.Context, now time.Time) (motif.Threshold, error) {
	failures, err := s.LoadRepeatFailures(ctx)
	if err != nil {
		return motif.Threshold{}, err
	}
	return motif.ActionableThreshold(failures, now), nil
}

// ReplaceRepeatFailures swaps the whole failure table in one transaction.
func (s *Store) ReplaceRepeatFailures(ctx context.Context, failures []motif.RepeatFailure) error {
	if err := s.writable(); err != nil {
		return err
	}
	rows := make([]RepeatFailureRow, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, RepeatFailureRow{
			WorkspaceFingerprint: f.WorkspaceFingerprint,
			CommandHash:          f.CommandHash,
			ExitCode:             f.ExitCode,
			CommandText:          nullString(f.Command),
			OccurrenceCount:      f.Occurrences,
			LastSeenMs:           nullInt64(f.LastSeenMs),
			RequestID:            nullString(f.RequestID),
			SampleSnippet:        nullString(f.Snippet),
		})
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&RepeatFailureRow{}).Error; err != nil {
			return fmt.Errorf("clear repeat failures: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("insert repeat failures: %w", err)
		}
		return nil
	})
}
