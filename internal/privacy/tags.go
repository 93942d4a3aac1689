// Package privacy handles key-based redaction of raw payloads and private
// tag stripping for indexed text.
package privacy

import (
	"regexp"
	"strings"
)

// RecallOpenTag and RecallCloseTag wrap recall output so that pasting it back
// into a chat never gets it re-indexed.
const (
	RecallOpenTag  = "<chatlens-recall>"
	RecallCloseTag = "</chatlens-recall>"
)

var (
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)
	recallTagRegex  = regexp.MustCompile(`(?s)<chatlens-recall>.*?</chatlens-recall>`)
)

// StripPrivateTags removes all <private>...</private> content from text.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// StripRecallTags removes previously emitted recall blocks from text.
func StripRecallTags(text string) string {
	return recallTagRegex.ReplaceAllString(text, "")
}

// IsEntirelyPrivate checks if the text is entirely within <private> tags.
func IsEntirelyPrivate(text string) bool {
	return strings.TrimSpace(StripPrivateTags(text)) == ""
}

// Clean strips private and recall blocks and trims the result.
// Every document text goes through Clean before it is indexed.
func Clean(text string) string {
	text = StripPrivateTags(text)
	text = StripRecallTags(text)
	return strings.TrimSpace(text)
}

// WrapRecall encloses recall output in recall tags.
func WrapRecall(text string) string {
	return RecallOpenTag + "\n" + strings.TrimRight(text, "\n") + "\n" + RecallCloseTag
}
