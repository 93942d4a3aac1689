// Package gorm provides the GORM-backed SQLite catalog of exported chat sessions.
package gorm

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store represents the GORM catalog connection.
type Store struct {
	DB       *gorm.DB
	sqlDB    *sql.DB
	path     string
	readOnly bool
}

// Config holds database configuration.
type Config struct {
	Path     string          // Path to SQLite catalog file
	MaxConns int             // Maximum number of open connections (default: 4)
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
	ReadOnly bool            // Open with mode=ro; the file must exist and no migrations run
}

// NewStore opens the catalog. Writable stores run migrations and switch to
// WAL mode; read-only stores never modify the file.
func NewStore(cfg Config) (*Store, error) {
	dsn := cfg.Path + "?_foreign_keys=ON"
	if cfg.ReadOnly {
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		dsn = "file:" + (&url.URL{Path: cfg.Path}).EscapedPath() + "?mode=ro&_query_only=true"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{
		Conn: sqlDB,
	}, &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{DB: db, sqlDB: sqlDB, path: cfg.Path, readOnly: cfg.ReadOnly}
	if cfg.ReadOnly {
		return store, nil
	}

	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Pragmas go through the raw connection to stay outside GORM transactions.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return store, nil
}

// OpenReadOnly opens an existing catalog without write access.
func OpenReadOnly(path string) (*Store, error) {
	return NewStore(Config{Path: path, ReadOnly: true, LogLevel: logger.Silent})
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// ReadOnly reports whether the store was opened with mode=ro.
func (s *Store) ReadOnly() bool { return s.readOnly }

func (s *Store) writable() error {
	if s.readOnly {
		return fmt.Errorf("catalog %s is open read-only", s.path)
	}
	return nil
}
