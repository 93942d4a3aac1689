package motif

import (
	"sort"
	"strconv"
	"strings"

	"github.com/thebtf/chatlens/pkg/models"
	"github.com/thebtf/chatlens/pkg/normalize"
)

// DefaultRepeatTopN is the number of repeated motifs reported per session.
const DefaultRepeatTopN = 12

// TitleCount is an action title with its frequency.
type TitleCount struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// RankTitles orders title counts by frequency, then title.
func RankTitles(counts map[string]int) []TitleCount {
	out := make([]TitleCount, 0, len(counts))
	for t, c := range counts {
		if c > 0 {
			out = append(out, TitleCount{Title: t, Count: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// JoinCounts renders ranked counts as "Terminal 2 · Read 1".
func JoinCounts(ranked []TitleCount) string {
	parts := make([]string, len(ranked))
	for i, tc := range ranked {
		parts[i] = tc.Title + " " + strconv.Itoa(tc.Count)
	}
	return strings.Join(parts, " · ")
}

// Repeat is a head-line fingerprint that occurred more than once in a session.
type Repeat struct {
	Fingerprint string `json:"fingerprint"`
	Exemplar    string `json:"exemplar"`
	Count       int    `json:"count"`
}

// Repeats returns head-line motifs seen more than once, most frequent first.
// The exemplar is the first head line that produced the fingerprint.
func Repeats(blocks []models.RenderedAction, topN int) []Repeat {
	if topN <= 0 {
		topN = DefaultRepeatTopN
	}
	byFP := map[string]*Repeat{}
	var order []string
	for _, b := range blocks {
		line := b.HeadLine()
		fp := normalize.Fingerprint(line)
		r, ok := byFP[fp]
		if !ok {
			r = &Repeat{Fingerprint: fp, Exemplar: line}
			byFP[fp] = r
			order = append(order, fp)
		}
		r.Count++
	}

	var out []Repeat
	for _, fp := range order {
		if r := byFP[fp]; r.Count > 1 {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Summary is the session-level motif report appended after all turns.
type Summary struct {
	Actions   []TitleCount   `json:"actions"`
	Repeats   []Repeat       `json:"repeats"`
	Sequences SequenceReport `json:"sequences"`
}

// Summarize builds the session report from every annotated block of the
// session in render order.
func Summarize(blocks []models.RenderedAction, sequenceTopN, repeatTopN int) Summary {
	counts := map[string]int{}
	titles := make([]string, 0, len(blocks))
	for _, b := range blocks {
		t := strings.TrimSpace(b.Title)
		if t == "" {
			continue
		}
		counts[t]++
		titles = append(titles, t)
	}
	return Summary{
		Actions:   RankTitles(counts),
		Repeats:   Repeats(blocks, repeatTopN),
		Sequences: SequenceMotifs(titles, sequenceTopN),
	}
}
