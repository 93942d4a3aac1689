package gorm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/chatlens/internal/motif"
	"github.com/thebtf/chatlens/pkg/models"
)

// LoadMotifIndex returns every catalogued fingerprint. Catalogs created
// before the motif table existed yield an empty index.
func (s *Store) LoadMotifIndex(ctx context.Context) ([]motif.Entry, error) {
	if !s.DB.Migrator().HasTable(&MotifIndexRow{}) {
		return nil, nil
	}
	var rows []MotifIndexRow
	if err := s.DB.WithContext(ctx).Order("fingerprint").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load motif index: %w", err)
	}
	entries := make([]motif.Entry, len(rows))
	for i, r := range rows {
		entries[i] = motif.Entry{
			Fingerprint: r.Fingerprint,
			Sessions:    []string(r.Sessions),
			Occurrences: r.Occurrences,
		}
	}
	return entries, nil
}

// ReplaceMotifIndex swaps the whole motif index in one transaction so
// readers see either the old or the new index.
func (s *Store) ReplaceMotifIndex(ctx context.Context, entries []motif.Entry) error {
	if err := s.writable(); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	rows := make([]MotifIndexRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, MotifIndexRow{
			Fingerprint:  e.Fingerprint,
			Sessions:     models.JSONStringArray(e.Sessions),
			Occurrences:  e.Occurrences,
			SessionCount: len(e.Sessions),
			UpdatedAtMs:  now,
		})
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&MotifIndexRow{}).Error; err != nil {
			return fmt.Errorf("clear motif index: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("insert motif index: %w", err)
		}
		return nil
	})
}
