// Package motif detects repeated actions within a session and across the
// catalog, and reports sequence-level repetition of action titles.
package motif

// SessionState counts fingerprint occurrences for one session render.
// Create one per session; it is never shared between sessions.
type SessionState struct {
	counts    map[string]int
	sessionID string
}

// NewSessionState returns empty state for the given session.
func NewSessionState(sessionID string) *SessionState {
	return &SessionState{sessionID: sessionID, counts: make(map[string]int)}
}

// SessionID returns the session this state belongs to.
func (s *SessionState) SessionID() string {
	return s.sessionID
}

// Observe records one occurrence and returns how many times the fingerprint
// had been seen before it.
func (s *SessionState) Observe(fingerprint string) int {
	prior := s.counts[fingerprint]
	s.counts[fingerprint] = prior + 1
	return prior
}

// Count returns the occurrences recorded so far.
func (s *SessionState) Count(fingerprint string) int {
	return s.counts[fingerprint]
}

// Len returns the number of distinct fingerprints observed.
func (s *SessionState) Len() int {
	return len(s.counts)
}
