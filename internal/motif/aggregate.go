package motif

import (
	"sort"

	"github.com/thebtf/chatlens/pkg/models"
	"github.com/thebtf/chatlens/pkg/similarity"
)

// Aggregator accumulates fingerprint statistics across sessions for the
// out-of-band cross-session index build.
type Aggregator struct {
	occurrences map[string]int
	sessions    map[string]map[string]bool
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		occurrences: make(map[string]int),
		sessions:    make(map[string]map[string]bool),
	}
}

// Add records every block of one session.
func (a *Aggregator) Add(sessionID string, blocks []models.RenderedAction) {
	for _, b := range blocks {
		fp := Fingerprint(b)
		if fp == "" {
			continue
		}
		a.occurrences[fp]++
		set, ok := a.sessions[fp]
		if !ok {
			set = make(map[string]bool)
			a.sessions[fp] = set
		}
		set[sessionID] = true
	}
}

// Len returns the number of distinct fingerprints recorded.
func (a *Aggregator) Len() int {
	return len(a.occurrences)
}

// Entries returns the aggregated entries ordered by fingerprint.
func (a *Aggregator) Entries() []Entry {
	out := make([]Entry, 0, len(a.occurrences))
	for fp, n := range a.occurrences {
		ids := make([]string, 0, len(a.sessions[fp]))
		for id := range a.sessions[fp] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out = append(out, Entry{Fingerprint: fp, Occurrences: n, Sessions: ids})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

// Families groups recorded fingerprints into near-duplicate clusters at the
// given similarity threshold.
func (a *Aggregator) Families(threshold float64) [][]string {
	return EntryFamilies(a.Entries(), threshold)
}

// EntryFamilies clusters the fingerprints of entries by token similarity.
func EntryFamilies(entries []Entry, threshold float64) [][]string {
	fps := make([]string, len(entries))
	for i, e := range entries {
		fps[i] = e.Fingerprint
	}
	return similarity.ClusterFingerprints(fps, threshold)
}

// RankEntries returns a copy of entries ordered by occurrences, then by
// distinct sessions, both descending, then by fingerprint.
func RankEntries(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		if len(out[i].Sessions) != len(out[j].Sessions) {
			return len(out[i].Sessions) > len(out[j].Sessions)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}
