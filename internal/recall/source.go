package recall

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/thebtf/chatlens/internal/db/gorm"
	"github.com/thebtf/chatlens/internal/documents"
	"github.com/thebtf/chatlens/pkg/models"
)

// ErrSourceUnavailable means the corpus cannot be read. It is fatal.
var ErrSourceUnavailable = errors.New("recall source unavailable")

// DocumentSource supplies the corpus. Implementations must never write to
// the underlying store.
type DocumentSource interface {
	// Identity describes the source's current state for cache keying.
	Identity(ctx context.Context) (Identity, error)

	// Documents loads the documents passing filter.
	Documents(ctx context.Context, filter Filter) ([]models.Document, error)
}

// CorpusSizer is implemented by sources that can report their unfiltered
// size cheaply.
type CorpusSizer interface {
	CorpusSize(ctx context.Context) (int64, error)
}

// StaticSource serves a fixed in-memory corpus.
type StaticSource struct {
	ID   Identity
	Docs []models.Document
}

// Identity implements DocumentSource.
func (s *StaticSource) Identity(context.Context) (Identity, error) { return s.ID, nil }

// Documents implements DocumentSource.
func (s *StaticSource) Documents(_ context.Context, filter Filter) ([]models.Document, error) {
	return filter.Normalized().Apply(s.Docs), nil
}

// CatalogSource builds documents from a SQLite catalog opened read-only.
type CatalogSource struct {
	manager *documents.Manager
	path    string
}

// NewCatalogSource resolves path and prepares a source backed by manager.
func NewCatalogSource(path string, manager *documents.Manager) *CatalogSource {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if manager == nil {
		manager = documents.DefaultManager(nil, documents.DefaultOptions())
	}
	return &CatalogSource{path: path, manager: manager}
}

func (s *CatalogSource) unavailable(err error) error {
	return fmt.Errorf("%w: Catalog not found at %s (%v). Export chat history to a catalog first or pass --catalog",
		ErrSourceUnavailable, s.path, err)
}

// Identity implements DocumentSource using the file's mtime and size. A
// write-ahead log sidecar is folded in, since committed writes can live
// there until the next checkpoint.
func (s *CatalogSource) Identity(context.Context) (Identity, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return Identity{}, s.unavailable(err)
	}
	if info.IsDir() {
		return Identity{}, s.unavailable(errors.New("path is a directory"))
	}
	id := Identity{Source: s.path, ModTimeNs: info.ModTime().UnixNano(), Size: info.Size()}
	if wal, err := os.Stat(s.path + "-wal"); err == nil && !wal.IsDir() {
		id.Size += wal.Size()
		id.ModTimeNs = max(id.ModTimeNs, wal.ModTime().UnixNano())
	}
	return id, nil
}

// Documents implements DocumentSource.
func (s *CatalogSource) Documents(ctx context.Context, filter Filter) ([]models.Document, error) {
	store, err := gorm.OpenReadOnly(s.path)
	if err != nil {
		return nil, s.unavailable(err)
	}
	defer store.Close()

	filter = filter.Normalized()
	sessions, err := store.LoadSessions(ctx, gorm.SessionFilter{
		Workspaces: filter.Workspaces,
		Sessions:   filter.Sessions,
		Agent:      filter.Agent,
	})
	if err != nil {
		return nil, s.unavailable(err)
	}
	return filter.Apply(s.manager.Build(sessions)), nil
}

// CorpusSize implements CorpusSizer by counting requests.
func (s *CatalogSource) CorpusSize(ctx context.Context) (int64, error) {
	store, err := gorm.OpenReadOnly(s.path)
	if err != nil {
		return 0, s.unavailable(err)
	}
	defer store.Close()
	return store.CountRequests(ctx)
}
