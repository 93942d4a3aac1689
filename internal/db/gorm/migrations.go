package gorm

import (
	"fmt"
	"strconv"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchemaVersion is recorded in catalog_metadata after migrations.
const SchemaVersion = 4

// runMigrations runs all catalog migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Session and request tables
		{
			ID: "001_catalog_core",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ChatSession{}, &Request{}, &Response{}, &ToolOutputRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("tool_outputs", "responses", "requests", "chat_sessions")
			},
		},

		// Migration 002: Catalog metadata
		{
			ID: "002_catalog_metadata",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&CatalogMetadata{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("catalog_metadata")
			},
		},

		// Migration 003: Cross-session motif index
		{
			ID: "003_motif_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&MotifIndexRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("motif_index")
			},
		},

		// Migration 004: Repeat-failure telemetry
		{
			ID: "004_metrics_repeat_failures",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&RepeatFailureRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("metrics_repeat_failures")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}

	version := CatalogMetadata{Key: "schema_version", Value: strconv.Itoa(SchemaVersion)}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&version).Error
}
