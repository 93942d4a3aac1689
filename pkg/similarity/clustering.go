// Package similarity provides token-set similarity over fingerprints.
package similarity

import (
	"regexp"
	"sort"
)

var tokenRe = regexp.MustCompile("[a-z0-9_`./:<>#-]+")

// Candidate is a catalogued fingerprint with its precomputed token set.
type Candidate struct {
	Tokens      map[string]bool
	Fingerprint string
}

// NewCandidate tokenizes a fingerprint once for repeated comparisons.
func NewCandidate(fingerprint string) Candidate {
	return Candidate{Fingerprint: fingerprint, Tokens: TokenSet(fingerprint)}
}

// TokenSet splits a normalized fingerprint into its distinct tokens.
func TokenSet(fingerprint string) map[string]bool {
	terms := make(map[string]bool)
	for _, tok := range tokenRe.FindAllString(fingerprint, -1) {
		terms[tok] = true
	}
	return terms
}

// JaccardSimilarity calculates the Jaccard similarity between two term sets.
// Returns a value between 0 (no overlap) and 1 (identical).
func JaccardSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// BestMatch returns the candidate most similar to query whose score is at or
// above threshold. Ties on score go to the lexically smallest fingerprint so
// the outcome never depends on candidate order. An empty query never matches.
func BestMatch(query map[string]bool, candidates []Candidate, threshold float64) (Candidate, float64, bool) {
	if len(query) == 0 {
		return Candidate{}, 0, false
	}
	var (
		best      Candidate
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		if len(c.Tokens) == 0 {
			continue
		}
		score := JaccardSimilarity(query, c.Tokens)
		if score < threshold {
			continue
		}
		if !found || score > bestScore || (score == bestScore && c.Fingerprint < best.Fingerprint) {
			best, bestScore, found = c, score, true
		}
	}
	return best, bestScore, found
}

// ClusterFingerprints groups fingerprints whose token sets are similar at or
// above threshold. The first member of each group, in sorted order, is its
// representative.
func ClusterFingerprints(fingerprints []string, threshold float64) [][]string {
	sorted := append([]string(nil), fingerprints...)
	sort.Strings(sorted)

	sets := make([]map[string]bool, len(sorted))
	for i, fp := range sorted {
		sets[i] = TokenSet(fp)
	}

	clustered := make([]bool, len(sorted))
	var groups [][]string
	for i := range sorted {
		if clustered[i] {
			continue
		}
		clustered[i] = true
		group := []string{sorted[i]}
		for j := i + 1; j < len(sorted); j++ {
			if clustered[j] {
				continue
			}
			if JaccardSimilarity(sets[i], sets[j]) >= threshold {
				clustered[j] = true
				group = append(group, sorted[j])
			}
		}
		groups = append(groups, group)
	}
	return groups
}
