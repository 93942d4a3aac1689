package recall

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// ErrCacheCorrupt marks an unreadable or mismatched cache artifact. It is
// never fatal: the engine rebuilds and overwrites the artifact.
var ErrCacheCorrupt = errors.New("recall cache corrupt")

// Identity identifies a corpus source at a point in time.
type Identity struct {
	Source    string `json:"source"`
	ModTimeNs int64  `json:"mtime_ns"`
	Size      int64  `json:"size"`
}

// CacheKey is everything an index depends on. Any change yields a new digest.
type CacheKey struct {
	Identity
	Filter  Filter `json:"filter"`
	Version int    `json:"version"`
}

// NewCacheKey pairs a source identity with a normalized filter.
func NewCacheKey(id Identity, filter Filter) CacheKey {
	return CacheKey{Identity: id, Filter: filter.Normalized(), Version: IndexVersion}
}

// Digest returns the hex sha256 of the key's canonical JSON.
func (k CacheKey) Digest() string {
	data, err := json.Marshal(k)
	if err != nil {
		data = []byte(fmt.Sprintf("%+v", k))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type cacheArtifact struct {
	Index *Index   `json:"index"`
	Key   CacheKey `json:"key"`
}

// FileCache persists indexes as JSON files named by key digest.
type FileCache struct {
	dir string
}

// NewFileCache creates a cache rooted at dir. The directory is created on
// first store.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Path returns the artifact path for key.
func (c *FileCache) Path(key CacheKey) string {
	return filepath.Join(c.dir, key.Digest()[:32]+".json")
}

// Load returns the cached index for key. A missing artifact returns
// (nil, nil); an unreadable one returns ErrCacheCorrupt.
func (c *FileCache) Load(key CacheKey) (*Index, error) {
	path := c.Path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCacheCorrupt, path, err)
	}
	var art cacheArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCacheCorrupt, path, err)
	}
	if art.Index == nil || art.Key.Digest() != key.Digest() || art.Index.Version != IndexVersion {
		return nil, fmt.Errorf("%w: key mismatch in %s", ErrCacheCorrupt, path)
	}
	if len(art.Index.Vectors) != len(art.Index.Documents) {
		return nil, fmt.Errorf("%w: %d vectors for %d documents in %s",
			ErrCacheCorrupt, len(art.Index.Vectors), len(art.Index.Documents), path)
	}
	return art.Index, nil
}

// Store writes the index atomically: a temp file in the same directory is
// renamed over the artifact so readers never see a partial write.
func (c *FileCache) Store(key CacheKey, idx *Index) error {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.Marshal(cacheArtifact{Key: key, Index: idx})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, ".recall-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	path := c.Path(key)
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	log.Debug().Str("path", path).Int("documents", idx.Len()).Msg("Recall index cached")
	return nil
}
