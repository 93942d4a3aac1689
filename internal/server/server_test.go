package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	"github.com/thebtf/chatlens/internal/config"
	"github.com/thebtf/chatlens/internal/db/gorm"
	"github.com/thebtf/chatlens/internal/motif"
	"github.com/thebtf/chatlens/internal/recall"
	"github.com/thebtf/chatlens/internal/workspace"
	"github.com/thebtf/chatlens/pkg/models"
)

type memoryCatalog struct {
	sessions map[string]models.Session
	entries  []motif.Entry
	failures []motif.RepeatFailure
}

func (m *memoryCatalog) LoadSession(_ context.Context, id string) (*models.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memoryCatalog) LoadMotifIndex(context.Context) ([]motif.Entry, error) {
	return m.entries, nil
}

func (m *memoryCatalog) LoadRepeatFailures(context.Context) ([]motif.RepeatFailure, error) {
	return m.failures, nil
}

func terminalEvents() []models.ToolEvent {
	return []models.ToolEvent{
		models.NewToolEvent(0, map[string]any{"kind": "prepareToolInvocation", "toolName": "run_in_terminal"}),
		models.NewToolEvent(1, map[string]any{"kind": "toolInvocationSerialized", "toolId": "run_in_terminal",
			"toolSpecificData": map[string]any{"commandLine": map[string]any{"original": "make"},
				"toolResult": map[string]any{"exitCode": float64(2)}}}),
	}
}

// ServiceSuite drives the router with an in-memory catalog and corpus.
type ServiceSuite struct {
	suite.Suite
	svc     *Service
	cfg     *config.Config
	catalog *memoryCatalog
	metrics *recall.Metrics
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ws1 := workspace.Fingerprint("/repo/one")
	source := &recall.StaticSource{
		ID: recall.Identity{Source: "mem", Size: 2},
		Docs: []models.Document{
			{ID: "d1", SessionID: "s1", WorkspaceFingerprint: ws1, Granularity: models.GranularityTurn,
				Text: "Prompt: the autosummarization regression is back", TimestampMs: 1000},
			{ID: "d2", SessionID: "s2", WorkspaceFingerprint: "feedfacefeedface", Granularity: models.GranularityTurn,
				Text: "Prompt: flaky network timeout in CI", TimestampMs: 2000},
		},
	}
	catalog := &memoryCatalog{
		sessions: map[string]models.Session{
			"s1": {ID: "s1", Turns: []models.Turn{
				{RequestID: "r1", Prompt: "build it\n```sh\nmake all\n```", Response: "failed", Status: models.TurnStatusOK, Events: terminalEvents()},
				{RequestID: "r2", Prompt: "again", Status: models.TurnStatusOK, Events: terminalEvents()},
			}},
		},
		entries: []motif.Entry{{Fingerprint: "terminal make → exit #", Sessions: []string{"s9"}, Occurrences: 3}},
	}
	metrics, err := recall.NewMetrics()
	s.Require().NoError(err)
	zero := 0.0
	s.cfg = config.Default()
	s.cfg.MinScore = &zero
	s.catalog = catalog
	s.metrics = metrics
	s.svc = New(Options{
		Version:    "test",
		Config:     s.cfg,
		Engine:     recall.NewEngine(source, recall.Options{Metrics: metrics}),
		Catalog:    catalog,
		Workspaces: workspace.NewRegistry(workspace.Workspace{Name: "one", Root: "/repo/one"}),
		Root:       "/repo",
	})
}

func (s *ServiceSuite) TearDownTest() {
	s.NoError(s.metrics.Shutdown(context.Background()))
}

func (s *ServiceSuite) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.svc.Handler().ServeHTTP(rec, req)
	return rec
}

func (s *ServiceSuite) decode(rec *httptest.ResponseRecorder) recallResult {
	var out recallResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *ServiceSuite) TestHealthReportsReadiness() {
	s.Equal(http.StatusServiceUnavailable, s.get("/health").Code)

	s.svc.Prewarm(context.Background())
	rec := s.get("/health")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"ok"`)
}

func (s *ServiceSuite) TestRecall() {
	rec := s.get("/api/recall?q=autosummarization+regression")
	s.Require().Equal(http.StatusOK, rec.Code)

	out := s.decode(rec)
	s.Equal(recall.StatusOK, out.Status)
	s.Require().Len(out.Hits, 1)
	s.Equal("d1", out.Hits[0].DocumentID)
	s.Equal(2, out.Indexed)
}

func (s *ServiceSuite) TestRecallWorkspaceByRegistryName() {
	out := s.decode(s.get("/api/recall?q=timeout&workspace=one"))
	s.Equal(recall.StatusNoMatches, out.Status)

	out = s.decode(s.get("/api/recall?q=timeout&workspace=feedfacefeedface"))
	s.Equal(recall.StatusOK, out.Status)
}

func (s *ServiceSuite) TestRecallFilteredEmpty() {
	out := s.decode(s.get("/api/recall?q=timeout&session=missing"))
	s.Equal(recall.StatusFilteredEmpty, out.Status)
	s.Empty(out.Hits)
}

func (s *ServiceSuite) TestRecallMinScoreSuppresses() {
	out := s.decode(s.get("/api/recall?q=timeout&min_score=0.99"))
	s.Equal(recall.StatusNoMatches, out.Status)
	s.Equal(1, out.Suppressed)
}

func (s *ServiceSuite) TestRecallDefaultsToActionableThreshold() {
	s.cfg.MinScore = nil

	out := s.decode(s.get("/api/recall?q=timeout"))
	s.Equal(motif.FallbackThreshold, out.MinScore)

	s.catalog.failures = []motif.RepeatFailure{
		{WorkspaceFingerprint: "ws", CommandHash: motif.CommandHash("make"), Command: "make", ExitCode: 2,
			Occurrences: 3, LastSeenMs: time.Now().UnixMilli()},
	}
	out = s.decode(s.get("/api/recall?q=timeout"))
	s.InDelta(motif.OccurrenceScore(3), out.MinScore, 1e-9)

	out = s.decode(s.get("/api/recall?q=timeout&min_score=0"))
	s.Zero(out.MinScore)
	s.Equal(recall.StatusOK, out.Status)
}

func (s *ServiceSuite) TestMetrics() {
	for i := 0; i < 2; i++ {
		s.Require().Equal(http.StatusOK, s.get("/api/recall?q=timeout").Code)
	}
	rec := s.get("/metrics")
	s.Require().Equal(http.StatusOK, rec.Code)

	var out struct {
		Recall          recall.Snapshot `json:"recall"`
		Builds          int64           `json:"builds"`
		MemoizedIndexes int             `json:"memoized_indexes"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	s.EqualValues(1, out.Builds)
	s.Equal(1, out.MemoizedIndexes)
	s.EqualValues(1, out.Recall.Rebuilds)
	s.EqualValues(2, out.Recall.Queries)
	s.Equal(recall.TierCounts{Hits: 1, Misses: 1}, out.Recall.Memory)
}

func (s *ServiceSuite) TestRecallBadRequests() {
	tests := []struct {
		name string
		path string
	}{
		{"missing q", "/api/recall"},
		{"bad min_score", "/api/recall?q=x&min_score=abc"},
		{"min_score above one", "/api/recall?q=x&min_score=1.5"},
		{"bad workspace", "/api/recall?q=x&workspace=nothing"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(http.StatusBadRequest, s.get(tt.path).Code)
		})
	}
}

func (s *ServiceSuite) TestTranscript() {
	rec := s.get("/api/sessions/s1/transcript")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "text/markdown")

	body := rec.Body.String()
	s.Contains(body, "# Chat Session — s1")
	s.Contains(body, "**Terminal** — make → exit 2 — Seen across 1 sessions (3× total, similarity=1.00)")
	s.Contains(body, "— Seen before (1× prior)")
	s.Contains(body, "## Actions summary")
}

func (s *ServiceSuite) TestTranscriptRaw() {
	body := s.get("/api/sessions/s1/transcript?raw=1").Body.String()
	s.NotContains(body, "Seen before")
	s.Contains(body, "```json")
}

func (s *ServiceSuite) TestTranscriptLOD0() {
	rec := s.get("/api/sessions/s1/transcript?lod=0")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("USER: build it\n```sh\n...\n```\n\nAssistant: failed\n\nUSER: again\n", rec.Body.String())

	s.Equal(http.StatusBadRequest, s.get("/api/sessions/s1/transcript?lod=1").Code)
}

func (s *ServiceSuite) TestTranscriptNotFound() {
	s.Equal(http.StatusNotFound, s.get("/api/sessions/nope/transcript").Code)
}

func (s *ServiceSuite) TestCatalogChangedPublishesAndRewarms() {
	srv := httptest.NewServer(s.svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events")
	s.Require().NoError(err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	line, err := reader.ReadString('\n')
	s.Require().NoError(err)
	s.Contains(line, EventConnected)

	s.Eventually(func() bool { return s.svc.Events().ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	go s.svc.CatalogChanged(context.Background())

	var seen []string
	for len(seen) < 2 {
		line, err := reader.ReadString('\n')
		s.Require().NoError(err)
		if strings.HasPrefix(line, "data: ") {
			var ev Event
			s.Require().NoError(json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			seen = append(seen, ev.Type)
		}
	}
	s.Equal([]string{EventCatalogChanged, EventIndexWarmed}, seen)
}

func TestCatalogReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := gorm.NewStore(gorm.Config{Path: path, LogLevel: logger.Silent})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.SaveSession(ctx, models.Session{ID: "s1", Turns: []models.Turn{
		{RequestID: "r1", Prompt: "hello", Response: "hi", Status: models.TurnStatusOK, TimestampMs: 1},
	}}))
	require.NoError(t, store.Close())

	reader := CatalogReader{Path: path}
	session, err := reader.LoadSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "hello", session.Turns[0].Prompt)

	entries, err := reader.LoadMotifIndex(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	failures, err := reader.LoadRepeatFailures(ctx)
	require.NoError(t, err)
	assert.Empty(t, failures)

	_, err = CatalogReader{Path: filepath.Join(t.TempDir(), "missing.db")}.LoadSession(ctx, "s1")
	assert.ErrorIs(t, err, recall.ErrSourceUnavailable)
}

func TestQueryList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?session=a,b&session=c&session=", nil)
	assert.Equal(t, []string{"a", "b", "c"}, queryList(req, "session"))
	assert.Equal(t, 10, ParseLimitParam(req, 10))
}
