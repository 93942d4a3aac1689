// Package recall answers free-text similarity queries over chat documents
// with a cached TF-IDF index.
package recall

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/chatlens/pkg/models"
)

// DefaultLimit is the result limit when a query does not set one.
const DefaultLimit = 10

// DefaultMemoSize is how many filtered indexes an engine keeps in memory.
const DefaultMemoSize = 16

// Status distinguishes the ways a query can come back without error.
type Status string

const (
	// StatusOK means at least one document scored above zero.
	StatusOK Status = "ok"
	// StatusNoMatches means documents were indexed but none matched.
	StatusNoMatches Status = "no_matches"
	// StatusEmptyCorpus means the source holds no documents at all.
	StatusEmptyCorpus Status = "empty_corpus"
	// StatusFilteredEmpty means the filters excluded every document.
	StatusFilteredEmpty Status = "filtered_empty"
)

// Query is a recall request.
type Query struct {
	Text     string  `json:"text"`
	Filter   Filter  `json:"filter"`
	Limit    int     `json:"limit"`
	MinScore float64 `json:"min_score"`
}

// Response carries ranked hits and how they were produced.
type Response struct {
	Status Status `json:"status"`
	Hits   []Hit  `json:"hits"`
	// Suppressed counts hits below MinScore among the top Limit results.
	// Lower-ranked documents past the limit are never scored against
	// MinScore, so they are not counted.
	Suppressed int           `json:"suppressed"`
	Indexed    int           `json:"indexed"`
	MinScore   float64       `json:"min_score"`
	Latency    time.Duration `json:"latency"`
	CacheHit   bool          `json:"cache_hit"`
}

// Options configures an Engine.
type Options struct {
	// Cache persists indexes between processes. Nil keeps them in memory only.
	Cache *FileCache
	// Metrics is optional.
	Metrics *Metrics
	// DisableCache rebuilds on every query and skips both cache tiers.
	DisableCache bool
	// MemoSize bounds the in-memory tier; 0 selects DefaultMemoSize.
	MemoSize int
}

// Engine runs queries against a DocumentSource. It is safe for concurrent
// use; concurrent queries with the same cache key share one rebuild.
type Engine struct {
	source  DocumentSource
	cache   *FileCache
	metrics *Metrics
	// memo holds only indexes built at memoID; an identity change purges it.
	memo    *lru.Cache[string, *Index]
	memoID  Identity
	group   singleflight.Group
	builds  atomic.Int64
	mu      sync.Mutex
	noCache bool
}

// NewEngine creates an engine reading from source.
func NewEngine(source DocumentSource, opts Options) *Engine {
	size := opts.MemoSize
	if size <= 0 {
		size = DefaultMemoSize
	}
	memo, err := lru.New[string, *Index](size)
	if err != nil {
		panic(err) // only for a non-positive size
	}
	return &Engine{
		source:  source,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		noCache: opts.DisableCache,
		memo:    memo,
	}
}

// Builds returns how many indexes this engine has built.
func (e *Engine) Builds() int64 { return e.builds.Load() }

// Memoized returns how many indexes the in-memory tier holds.
func (e *Engine) Memoized() int { return e.memo.Len() }

// Metrics returns the engine's instruments, which may be nil.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Query ranks documents against q.Text. Source faults return
// ErrSourceUnavailable; every other outcome is a Status.
func (e *Engine) Query(ctx context.Context, q Query) (*Response, error) {
	start := time.Now()
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.New("recall query is empty")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	filter := q.Filter.Normalized()

	idx, cacheHit, err := e.Index(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &Response{Indexed: idx.Len(), MinScore: q.MinScore, CacheHit: cacheHit}
	switch {
	case idx.Len() == 0 && (idx.CorpusEmpty || !filter.Active()):
		resp.Status = StatusEmptyCorpus
	case idx.Len() == 0:
		resp.Status = StatusFilteredEmpty
	default:
		for _, h := range idx.Search(q.Text, limit) {
			if h.Score < q.MinScore {
				resp.Suppressed++
				continue
			}
			resp.Hits = append(resp.Hits, h)
		}
		resp.Status = StatusOK
		if len(resp.Hits) == 0 {
			resp.Status = StatusNoMatches
		}
	}

	resp.Latency = time.Since(start)
	e.metrics.query(ctx, resp.Latency, resp.Status)
	log.Debug().
		Str("status", string(resp.Status)).
		Int("hits", len(resp.Hits)).
		Int("indexed", resp.Indexed).
		Bool("cache_hit", cacheHit).
		Dur("latency", resp.Latency).
		Msg("Recall query")
	return resp, nil
}

// Index returns the index for filter at the source's current identity,
// building it when neither the memo nor the file cache holds it. The bool
// reports whether a cached index was used.
func (e *Engine) Index(ctx context.Context, filter Filter) (*Index, bool, error) {
	id, err := e.source.Identity(ctx)
	if err != nil {
		return nil, false, err
	}
	key := NewCacheKey(id, filter)
	if e.noCache {
		idx, err := e.build(ctx, key)
		return idx, false, err
	}

	e.dropStale(id)
	digest := key.Digest()
	idx, ok := e.memo.Get(digest)
	e.metrics.lookup(ctx, "memory", ok)
	if ok {
		return idx, true, nil
	}

	type result struct {
		idx *Index
		hit bool
	}
	v, err, _ := e.group.Do(digest, func() (any, error) {
		if memoized, ok := e.memo.Get(digest); ok {
			return result{idx: memoized, hit: true}, nil
		}
		idx, hit, err := e.loadOrBuild(ctx, key)
		if err != nil {
			return nil, err
		}
		e.memo.Add(digest, idx)
		return result{idx: idx, hit: hit}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(result)
	return r.idx, r.hit, nil
}

// dropStale purges the memo once the source identity moves on.
func (e *Engine) dropStale(id Identity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.memoID != id {
		e.memo.Purge()
		e.memoID = id
	}
}

func (e *Engine) loadOrBuild(ctx context.Context, key CacheKey) (*Index, bool, error) {
	if e.cache != nil {
		idx, err := e.cache.Load(key)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("path", e.cache.Path(key)).Msg("Recall cache unreadable, rebuilding")
		case idx != nil:
			e.metrics.lookup(ctx, "file", true)
			return idx, true, nil
		}
		e.metrics.lookup(ctx, "file", false)
	}

	idx, err := e.build(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if e.cache != nil {
		if err := e.cache.Store(key, idx); err != nil {
			log.Warn().Err(err).Str("dir", e.cache.Dir()).Msg("Failed to persist recall index")
		}
	}
	return idx, false, nil
}

func (e *Engine) build(ctx context.Context, key CacheKey) (*Index, error) {
	docs, err := e.source.Documents(ctx, key.Filter)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	idx := BuildIndex(docs)
	if len(docs) == 0 {
		empty, err := e.corpusEmpty(ctx, key.Filter)
		if err != nil {
			return nil, err
		}
		idx.CorpusEmpty = empty
	}
	e.builds.Add(1)
	e.metrics.rebuild(ctx)
	log.Debug().Str("source", key.Source).Int("documents", len(docs)).Msg("Recall index built")
	return idx, nil
}

func (e *Engine) corpusEmpty(ctx context.Context, filter Filter) (bool, error) {
	if !filter.Active() {
		return true, nil
	}
	if sizer, ok := e.source.(CorpusSizer); ok {
		n, err := sizer.CorpusSize(ctx)
		if err != nil {
			return false, err
		}
		return n == 0, nil
	}
	all, err := e.source.Documents(ctx, Filter{})
	if err != nil {
		return false, fmt.Errorf("load documents: %w", err)
	}
	return len(all) == 0, nil
}

// Invalidate drops memoized indexes. File artifacts are left alone since
// their keys already encode the source identity.
func (e *Engine) Invalidate() {
	e.memo.Purge()
}

// Documents returns a copy of the hits' documents.
func (r *Response) Documents() []models.Document {
	out := make([]models.Document, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.Document
	}
	return out
}
