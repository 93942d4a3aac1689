// Package normalize provides text canonicalization primitives shared by the
// action matcher and the motif engine.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// Placeholders substituted for masked tokens.
const (
	PlaceholderURI   = "<uri>"
	PlaceholderPath  = "<path>"
	PlaceholderUUID  = "<uuid>"
	PlaceholderHex   = "<hex>"
	PlaceholderDigit = "#"
)

var (
	seenMarkerRe  = regexp.MustCompile(`\s+—\s+seen\s+(?:before|across)\s[^—]*`)
	uriRe         = regexp.MustCompile(`[a-z][a-z0-9+.-]*://[^\s)"'<>]+`)
	windowsPathRe = regexp.MustCompile(`[a-z]:[\\/][^\s"'<>]*`)
	unixPathRe    = regexp.MustCompile(`[\w.~@+-]*(?:/[\w.~@+-]+)+/?`)
	uuidRe        = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	hexRe         = regexp.MustCompile(`\b[0-9a-f]{8,}\b`)
	digitsRe      = regexp.MustCompile(`\d+`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// maxPasses bounds the fixpoint loop in Fingerprint. Real inputs settle in
// one or two passes.
const maxPasses = 8

// Fingerprint canonicalizes text into a similarity-tolerant key.
// It lowercases, drops repetition markers, masks URIs, paths, UUIDs and long
// hex ids, collapses digit runs and whitespace. A masking step can expose a
// marker or token that an earlier step missed, so the pass repeats until its
// output stops changing; this keeps Fingerprint idempotent.
func Fingerprint(text string) string {
	t := text
	for i := 0; i < maxPasses; i++ {
		next := fingerprintPass(t)
		if next == t {
			break
		}
		t = next
	}
	return t
}

func fingerprintPass(text string) string {
	t := CollapseWhitespace(strings.ToLower(text))
	t = StripSeenMarkers(t)
	t = MaskURIs(t)
	t = MaskPaths(t)
	t = MaskUUIDs(t)
	t = MaskHex(t)
	t = CollapseDigits(t)
	return CollapseWhitespace(t)
}

// StripSeenMarkers removes "— Seen before" / "— Seen across" annotations.
// Input is expected to be lowercase.
func StripSeenMarkers(text string) string {
	return seenMarkerRe.ReplaceAllString(text, "")
}

// MaskURIs replaces scheme://authority/path tokens.
func MaskURIs(text string) string {
	return uriRe.ReplaceAllString(text, PlaceholderURI)
}

// MaskPaths replaces Windows drive paths and slash-separated paths.
func MaskPaths(text string) string {
	text = windowsPathRe.ReplaceAllString(text, PlaceholderPath)
	return unixPathRe.ReplaceAllString(text, PlaceholderPath)
}

// MaskUUIDs replaces 8-4-4-4-12 hex tokens.
func MaskUUIDs(text string) string {
	return uuidRe.ReplaceAllString(text, PlaceholderUUID)
}

// MaskHex replaces hex-looking ids of 8+ chars that mix letters and digits,
// e.g. commit hashes. Pure digit runs are left to CollapseDigits.
func MaskHex(text string) string {
	return hexRe.ReplaceAllStringFunc(text, func(tok string) string {
		hasLetter := strings.IndexFunc(tok, unicode.IsLetter) >= 0
		hasDigit := strings.IndexFunc(tok, unicode.IsDigit) >= 0
		if hasLetter && hasDigit {
			return PlaceholderHex
		}
		return tok
	})
}

// CollapseDigits replaces every digit run with a single placeholder.
func CollapseDigits(text string) string {
	return digitsRe.ReplaceAllString(text, PlaceholderDigit)
}

// CollapseWhitespace folds whitespace runs to a single space and trims.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
