// Package documents turns catalog sessions into overlapping recall documents
// at turn, round and tool granularity.
package documents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/thebtf/chatlens/internal/privacy"
	"github.com/thebtf/chatlens/pkg/models"
)

// Builder produces documents of one granularity from a session.
type Builder interface {
	// Granularity returns the granularity this builder emits.
	Granularity() models.Granularity

	// Build returns the session's documents. Every document must belong to
	// the given session.
	Build(session models.Session) []models.Document
}

// Options selects which granularities a Manager builds.
type Options struct {
	// Granularities limits the builders run. Empty means all.
	Granularities []models.Granularity

	// PromptExcerptLen caps the prompt excerpt embedded in round documents.
	PromptExcerptLen int
}

// DefaultOptions builds every granularity.
func DefaultOptions() Options {
	return Options{PromptExcerptLen: 160}
}

// Tag prefixes.
const (
	TagGranularity = "granularity:"
	TagTool        = "tool:"
	TagExit        = "exit:"
	TagAgent       = "agent:"
	TagStatus      = "status:"
)

// derivedID returns a stable id for a sub-document of a request.
func derivedID(requestID, part string, n int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%s/%d", requestID, part, n))).String()
}

// newDocument fills provenance from the session and turn. It returns false
// when the cleaned text is empty.
func newDocument(s models.Session, t models.Turn, id string, g models.Granularity, text string, tags []string) (models.Document, bool) {
	text = privacy.Clean(text)
	if text == "" {
		return models.Document{}, false
	}
	base := []string{TagGranularity + string(g)}
	if t.AgentID != "" {
		base = append(base, TagAgent+t.AgentID)
	}
	if t.Status != "" {
		base = append(base, TagStatus+string(t.Status))
	}
	return models.Document{
		ID:                   id,
		SessionID:            s.ID,
		RequestID:            t.RequestID,
		WorkspaceFingerprint: s.WorkspaceFingerprint,
		AgentID:              t.AgentID,
		Granularity:          g,
		Text:                 text,
		Tags:                 append(base, uniqueSorted(tags)...),
		TimestampMs:          t.TimestampMs,
	}, true
}

func uniqueSorted(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
