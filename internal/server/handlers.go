package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/chatlens/internal/motif"
	"github.com/thebtf/chatlens/internal/recall"
	"github.com/thebtf/chatlens/internal/render"
	"github.com/thebtf/chatlens/internal/workspace"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, code := "ok", http.StatusOK
	if !s.ready.Load() {
		status, code = "starting", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"event_clients":  s.events.ClientCount(),
	})
}

func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "recall engine not configured")
		return
	}
	snap, err := s.engine.Metrics().Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to collect recall metrics")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recall":           snap,
		"builds":           s.engine.Builds(),
		"memoized_indexes": s.engine.Memoized(),
	})
}

// defaultMinScore is CHATLENS_MIN_SCORE when set, otherwise the actionable
// threshold from the catalog's repeat-failure telemetry.
func (s *Service) defaultMinScore(ctx context.Context) float64 {
	if s.config.MinScore != nil {
		return *s.config.MinScore
	}
	if s.catalog == nil {
		return motif.FallbackThreshold
	}
	failures, err := s.catalog.LoadRepeatFailures(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Repeat-failure telemetry unavailable, using fallback threshold")
		return motif.FallbackThreshold
	}
	return motif.ActionableThreshold(failures, time.Now()).Value
}

type recallHit struct {
	DocumentID           string   `json:"document_id"`
	SessionID            string   `json:"session_id"`
	RequestID            string   `json:"request_id"`
	Granularity          string   `json:"granularity"`
	WorkspaceFingerprint string   `json:"workspace_fingerprint,omitempty"`
	Timestamp            string   `json:"timestamp,omitempty"`
	Snippet              string   `json:"snippet"`
	Tags                 []string `json:"tags,omitempty"`
	Score                float64  `json:"score"`
}

type recallResult struct {
	Status         recall.Status `json:"status"`
	Hits           []recallHit   `json:"hits"`
	Indexed        int           `json:"indexed"`
	Suppressed     int           `json:"suppressed"`
	MinScore       float64       `json:"min_score"`
	CacheHit       bool          `json:"cache_hit"`
	LatencySeconds float64       `json:"latency_seconds"`
}

func (s *Service) handleRecall(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "recall engine not configured")
		return
	}
	text := r.URL.Query().Get("q")
	if text == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	var minScore float64
	if r.URL.Query().Get("min_score") == "" {
		minScore = s.defaultMinScore(r.Context())
	} else {
		v, err := parseFloatParam(r, "min_score", 0)
		if err != nil || v < 0 || v > 1 {
			writeError(w, http.StatusBadRequest, "invalid min_score")
			return
		}
		minScore = v
	}
	workspaces, err := s.workspaceFilter(queryList(r, "workspace"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.engine.Query(r.Context(), recall.Query{
		Text: text,
		Filter: recall.Filter{
			Agent:      r.URL.Query().Get("agent"),
			Workspaces: workspaces,
			Sessions:   queryList(r, "session"),
		},
		Limit:    ParseLimitParam(r, s.config.RecallLimit),
		MinScore: minScore,
	})
	if err != nil {
		if errors.Is(err, recall.ErrSourceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		log.Error().Err(err).Msg("Recall query failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := recallResult{
		Status:         resp.Status,
		Hits:           make([]recallHit, 0, len(resp.Hits)),
		Indexed:        resp.Indexed,
		Suppressed:     resp.Suppressed,
		MinScore:       resp.MinScore,
		CacheHit:       resp.CacheHit,
		LatencySeconds: resp.Latency.Seconds(),
	}
	for _, h := range resp.Hits {
		d := h.Document
		out.Hits = append(out.Hits, recallHit{
			DocumentID:           d.ID,
			SessionID:            d.SessionID,
			RequestID:            d.RequestID,
			Granularity:          string(d.Granularity),
			WorkspaceFingerprint: d.WorkspaceFingerprint,
			Timestamp:            d.TimestampISO(),
			Snippet:              recall.Snippet(d.Text),
			Tags:                 d.Tags,
			Score:                h.Score,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// workspaceFilter normalizes selectors; no selectors means every workspace.
func (s *Service) workspaceFilter(selectors []string) ([]string, error) {
	if len(selectors) == 0 {
		return nil, nil
	}
	base := s.root
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		base = wd
	}
	out := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		fp, err := workspace.NormalizeSelector(sel, base, s.workspaces)
		if err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, nil
}

func (s *Service) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not configured")
		return
	}
	id := chi.URLParam(r, "id")
	lod := r.URL.Query().Get("lod")
	if lod != "" && lod != "0" {
		writeError(w, http.StatusBadRequest, "only lod=0 is supported")
		return
	}

	session, err := s.catalog.LoadSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, recall.ErrSourceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if lod == "0" {
		writeText(w, "text/plain; charset=utf-8", render.RenderLOD0(*session).Text)
		return
	}

	raw := boolParam(r, "raw")
	var index *motif.CrossSessionIndex
	if !raw {
		entries, err := s.catalog.LoadMotifIndex(r.Context())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load motif index, rendering without cross-session markers")
		} else if len(entries) > 0 {
			index = motif.NewCrossSessionIndex(entries)
		}
	}
	renderer := render.New(s.matcher, motif.NewAnnotator(s.config.SimilarityThreshold), index, render.Options{
		Raw:          raw,
		SequenceTopN: s.config.SequenceTopN,
		RepeatTopN:   s.config.RepeatTopN,
	})
	writeText(w, "text/markdown; charset=utf-8", renderer.Render(*session).Markdown)
}
