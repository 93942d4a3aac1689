package recall

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_']+`)

// Tokenize lowercases text and splits it on word boundaries. Apostrophes
// stay inside words.
func Tokenize(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// termFrequencies returns count/total per term.
func termFrequencies(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	total := float64(len(tokens))
	for term, c := range counts {
		counts[term] = c / total
	}
	return counts
}
