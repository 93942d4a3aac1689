package motif

import (
	"sort"
	"strings"
)

// DefaultSequenceTopN is the number of bigrams and trigrams reported.
const DefaultSequenceTopN = 8

// Sequence is an ordered run of action titles and how often it occurred.
type Sequence struct {
	Titles []string `json:"titles"`
	Count  int      `json:"count"`
}

// String renders the sequence as "A → B → C".
func (s Sequence) String() string {
	return strings.Join(s.Titles, " → ")
}

// SequenceReport holds the top bigrams and trigrams of a session.
type SequenceReport struct {
	Bigrams  []Sequence `json:"bigrams"`
	Trigrams []Sequence `json:"trigrams"`
}

// Empty reports whether no sequence was found.
func (r SequenceReport) Empty() bool {
	return len(r.Bigrams) == 0 && len(r.Trigrams) == 0
}

// SequenceMotifs counts title bigrams and trigrams over the ordered titles
// and returns the topN of each, most frequent first, ties in lexical order.
func SequenceMotifs(titles []string, topN int) SequenceReport {
	if topN <= 0 {
		topN = DefaultSequenceTopN
	}
	clean := make([]string, 0, len(titles))
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return SequenceReport{
		Bigrams:  topNGrams(clean, 2, topN),
		Trigrams: topNGrams(clean, 3, topN),
	}
}

func topNGrams(titles []string, n, topN int) []Sequence {
	if len(titles) < n {
		return nil
	}
	const sep = "\x00"
	counts := map[string]int{}
	for i := 0; i+n <= len(titles); i++ {
		counts[strings.Join(titles[i:i+n], sep)]++
	}

	seqs := make([]Sequence, 0, len(counts))
	for key, c := range counts {
		seqs = append(seqs, Sequence{Titles: strings.Split(key, sep), Count: c})
	}
	sort.Slice(seqs, func(i, j int) bool {
		if seqs[i].Count != seqs[j].Count {
			return seqs[i].Count > seqs[j].Count
		}
		return lessTitles(seqs[i].Titles, seqs[j].Titles)
	})
	if len(seqs) > topN {
		seqs = seqs[:topN]
	}
	return seqs
}

func lessTitles(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
