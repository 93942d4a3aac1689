package motif

import (
	"sort"

	"github.com/thebtf/chatlens/pkg/similarity"
)

// Entry is one catalogued fingerprint with its corpus-wide statistics.
type Entry struct {
	Fingerprint string   `json:"fingerprint"`
	Sessions    []string `json:"sessions"`
	Occurrences int      `json:"occurrences"`
}

// Match is a cross-session lookup result.
type Match struct {
	Entry
	Similarity float64
	Exact      bool
}

// CrossSessionIndex is a read-only view over catalogued fingerprints.
// It is built once per render and never mutated by annotation.
type CrossSessionIndex struct {
	entries    map[string]Entry
	candidates []similarity.Candidate
}

// NewCrossSessionIndex builds an index. Duplicate fingerprints are merged.
func NewCrossSessionIndex(entries []Entry) *CrossSessionIndex {
	merged := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.Fingerprint == "" {
			continue
		}
		cur, ok := merged[e.Fingerprint]
		if !ok {
			e.Sessions = uniqueSorted(e.Sessions)
			merged[e.Fingerprint] = e
			continue
		}
		cur.Occurrences += e.Occurrences
		cur.Sessions = uniqueSorted(append(cur.Sessions, e.Sessions...))
		merged[e.Fingerprint] = cur
	}

	fps := make([]string, 0, len(merged))
	for fp := range merged {
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	candidates := make([]similarity.Candidate, len(fps))
	for i, fp := range fps {
		candidates[i] = similarity.NewCandidate(fp)
	}
	return &CrossSessionIndex{entries: merged, candidates: candidates}
}

// Len returns the number of catalogued fingerprints.
func (x *CrossSessionIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Entries returns all entries ordered by fingerprint.
func (x *CrossSessionIndex) Entries() []Entry {
	if x == nil {
		return nil
	}
	out := make([]Entry, 0, len(x.candidates))
	for _, c := range x.candidates {
		out = append(out, x.entries[c.Fingerprint])
	}
	return out
}

// Lookup finds the catalogued entry for fingerprint: an exact match first,
// otherwise the most similar entry by token Jaccard at or above threshold.
// A nil index never matches.
func (x *CrossSessionIndex) Lookup(fingerprint string, threshold float64) (Match, bool) {
	if x == nil || fingerprint == "" {
		return Match{}, false
	}
	if e, ok := x.entries[fingerprint]; ok {
		return Match{Entry: e, Similarity: 1, Exact: true}, true
	}
	best, score, ok := similarity.BestMatch(similarity.TokenSet(fingerprint), x.candidates, threshold)
	if !ok {
		return Match{}, false
	}
	return Match{Entry: x.entries[best.Fingerprint], Similarity: score}, true
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
