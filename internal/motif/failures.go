package motif

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"

	"github.com/thebtf/chatlens/internal/matcher"
	"github.com/thebtf/chatlens/internal/privacy"
	"github.com/thebtf/chatlens/pkg/models"
	"github.com/thebtf/chatlens/pkg/normalize"
)

const maxFailureSnippet = 200

// RepeatFailure tallies one failing command per workspace and exit code.
type RepeatFailure struct {
	WorkspaceFingerprint string `json:"workspace_fingerprint"`
	CommandHash          string `json:"command_hash"`
	Command              string `json:"command"`
	ExitCode             int    `json:"exit_code"`
	Occurrences          int    `json:"occurrences"`
	LastSeenMs           int64  `json:"last_seen_ms"`
	RequestID            string `json:"request_id,omitempty"`
	Snippet              string `json:"snippet,omitempty"`
}

type failureKey struct {
	workspace string
	hash      string
	exitCode  int
}

// FailureAggregator counts failed terminal commands across sessions.
type FailureAggregator struct {
	entries map[failureKey]*RepeatFailure
}

// NewFailureAggregator returns an empty aggregator.
func NewFailureAggregator() *FailureAggregator {
	return &FailureAggregator{entries: make(map[failureKey]*RepeatFailure)}
}

// CommandHash identifies a command independent of surrounding whitespace.
func CommandHash(command string) string {
	sum := sha1.Sum([]byte(command))
	return hex.EncodeToString(sum[:])
}

// AddSession records every failed terminal command in session. The most
// recent occurrence supplies the request ID and snippet.
func (a *FailureAggregator) AddSession(session models.Session) {
	for _, t := range session.Turns {
		for _, f := range matcher.TerminalFailures(t.Events) {
			a.add(session.WorkspaceFingerprint, t, f)
		}
	}
}

func (a *FailureAggregator) add(workspace string, t models.Turn, f matcher.TerminalFailure) {
	key := failureKey{workspace: workspace, hash: CommandHash(f.Command), exitCode: f.ExitCode}
	snippet := normalize.Truncate(privacy.Clean(f.Command), maxFailureSnippet)

	e, ok := a.entries[key]
	if !ok {
		a.entries[key] = &RepeatFailure{
			WorkspaceFingerprint: workspace,
			CommandHash:          key.hash,
			Command:              f.Command,
			ExitCode:             f.ExitCode,
			Occurrences:          1,
			LastSeenMs:           t.TimestampMs,
			RequestID:            t.RequestID,
			Snippet:              snippet,
		}
		return
	}
	e.Occurrences++
	if t.TimestampMs >= e.LastSeenMs {
		e.LastSeenMs = t.TimestampMs
		e.RequestID = t.RequestID
		e.Snippet = snippet
	}
}

// Len returns the number of distinct failures recorded.
func (a *FailureAggregator) Len() int { return len(a.entries) }

// Entries returns the tallies ordered by workspace, command hash and exit code.
func (a *FailureAggregator) Entries() []RepeatFailure {
	out := make([]RepeatFailure, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkspaceFingerprint != out[j].WorkspaceFingerprint {
			return out[i].WorkspaceFingerprint < out[j].WorkspaceFingerprint
		}
		if out[i].CommandHash != out[j].CommandHash {
			return out[i].CommandHash < out[j].CommandHash
		}
		return out[i].ExitCode < out[j].ExitCode
	})
	return out
}
