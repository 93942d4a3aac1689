// Package server exposes recall and transcript rendering over HTTP for
// long-running use, keeping the recall index warm between queries.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/chatlens/internal/config"
	"github.com/thebtf/chatlens/internal/db/gorm"
	"github.com/thebtf/chatlens/internal/matcher"
	"github.com/thebtf/chatlens/internal/motif"
	"github.com/thebtf/chatlens/internal/recall"
	"github.com/thebtf/chatlens/internal/workspace"
	"github.com/thebtf/chatlens/pkg/models"
)

// Catalog is the read side of the session catalog used by transcript rendering.
type Catalog interface {
	LoadSession(ctx context.Context, sessionID string) (*models.Session, error)
	LoadMotifIndex(ctx context.Context) ([]motif.Entry, error)
	LoadRepeatFailures(ctx context.Context) ([]motif.RepeatFailure, error)
}

// CatalogReader opens the catalog file read-only for every call, so a
// replaced file is picked up without restarting.
type CatalogReader struct {
	Path string
}

// LoadSession implements Catalog.
func (c CatalogReader) LoadSession(ctx context.Context, sessionID string) (*models.Session, error) {
	store, err := gorm.OpenReadOnly(c.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recall.ErrSourceUnavailable, err)
	}
	defer store.Close()
	return store.LoadSession(ctx, sessionID)
}

// LoadMotifIndex implements Catalog.
func (c CatalogReader) LoadMotifIndex(ctx context.Context) ([]motif.Entry, error) {
	store, err := gorm.OpenReadOnly(c.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recall.ErrSourceUnavailable, err)
	}
	defer store.Close()
	return store.LoadMotifIndex(ctx)
}

// LoadRepeatFailures implements Catalog.
func (c CatalogReader) LoadRepeatFailures(ctx context.Context) ([]motif.RepeatFailure, error) {
	store, err := gorm.OpenReadOnly(c.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recall.ErrSourceUnavailable, err)
	}
	defer store.Close()
	return store.LoadRepeatFailures(ctx)
}

// Options wires a Service.
type Options struct {
	Version    string
	Config     *config.Config
	Engine     *recall.Engine
	Catalog    Catalog
	Matcher    *matcher.Matcher
	Workspaces *workspace.Registry
	// Root resolves relative workspace selectors. Empty uses the working directory.
	Root string
}

// Service is the HTTP surface.
type Service struct {
	version    string
	config     *config.Config
	engine     *recall.Engine
	catalog    Catalog
	matcher    *matcher.Matcher
	workspaces *workspace.Registry
	root       string
	events     *Broadcaster
	router     chi.Router
	server     *http.Server
	startTime  time.Time
	ready      atomic.Bool
}

// New creates a service and its routes.
func New(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	mt := opts.Matcher
	if mt == nil {
		mt = matcher.New(nil, matcher.Options{NoiseKinds: cfg.NoiseKinds, RedactKeys: cfg.RedactKeys})
	}
	s := &Service{
		version:    opts.Version,
		config:     cfg,
		engine:     opts.Engine,
		catalog:    opts.Catalog,
		matcher:    mt,
		workspaces: opts.Workspaces,
		root:       opts.Root,
		events:     NewBroadcaster(),
		router:     chi.NewRouter(),
		startTime:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/metrics", s.handleMetrics)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/recall", s.handleRecall)
		r.Get("/sessions/{id}/transcript", s.handleTranscript)
		r.Handle("/events", s.events)
	})
}

// Handler returns the routed handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Events returns the event broadcaster.
func (s *Service) Events() *Broadcaster {
	return s.events
}

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Service) Start(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", s.version).Msg("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	go s.Prewarm(ctx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// Prewarm builds the unfiltered index so the first query is served from memory.
func (s *Service) Prewarm(ctx context.Context) {
	if s.engine == nil {
		s.ready.Store(true)
		return
	}
	idx, _, err := s.engine.Index(ctx, recall.Filter{})
	s.ready.Store(true)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to pre-warm recall index")
		return
	}
	log.Info().Int("documents", idx.Len()).Msg("Recall index warm")
	s.events.Publish(Event{Type: EventIndexWarmed, Indexed: idx.Len()})
}

// CatalogChanged drops warm indexes, tells event clients, and rebuilds.
func (s *Service) CatalogChanged(ctx context.Context) {
	if s.engine != nil {
		s.engine.Invalidate()
	}
	catalog := ""
	if cr, ok := s.catalog.(CatalogReader); ok {
		catalog = cr.Path
	}
	s.events.Publish(Event{Type: EventCatalogChanged, Catalog: catalog})
	s.Prewarm(ctx)
}

// requestLogger logs each request through zerolog. The wrapped writer keeps
// http.Flusher so the event stream still works.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
