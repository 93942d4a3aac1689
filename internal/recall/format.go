package recall

import (
	"fmt"
	"io"
	"strings"

	"github.com/thebtf/chatlens/internal/privacy"
	"github.com/thebtf/chatlens/pkg/normalize"
)

const snippetLen = 220

// FormatOptions tunes FormatResponse.
type FormatOptions struct {
	PrintLatency bool
	// Tagged wraps the report in recall tags, which document builders strip.
	Tagged bool
}

// FormatResponse writes a plain-text report of resp.
func FormatResponse(w io.Writer, resp *Response, opts FormatOptions) error {
	var b strings.Builder
	switch resp.Status {
	case StatusEmptyCorpus:
		b.WriteString("No documents indexed yet. Export chat history to the catalog and retry.\n")
	case StatusFilteredEmpty:
		b.WriteString("No documents match the active filters.\n")
	case StatusNoMatches:
		if resp.Suppressed > 0 {
			fmt.Fprintf(&b, "No similar situations found above threshold %.3f. %d candidate(s) were below the actionability threshold.\n",
				resp.MinScore, resp.Suppressed)
		} else {
			b.WriteString("No similar situations found.\n")
		}
	default:
		fmt.Fprintf(&b, "Actionable results: %d/%d (min_score=%.3f)\n",
			len(resp.Hits), len(resp.Hits)+resp.Suppressed, resp.MinScore)
		for i, h := range resp.Hits {
			if i > 0 {
				b.WriteString("\n")
			}
			d := h.Document
			fmt.Fprintf(&b, "score=%.3f doc=%s granularity=%s session=%s timestamp=%s fingerprint=%s\n",
				h.Score, d.ID, d.Granularity, d.SessionID, orDash(d.TimestampISO()), orDash(d.WorkspaceFingerprint))
			if len(d.Tags) > 0 {
				fmt.Fprintf(&b, "  tags=%s\n", strings.Join(d.Tags, ", "))
			}
			fmt.Fprintf(&b, "  %s\n", Snippet(d.Text))
		}
	}
	if opts.PrintLatency {
		fmt.Fprintf(&b, "query_latency_seconds=%.4f\n", resp.Latency.Seconds())
	}
	out := b.String()
	if opts.Tagged {
		out = privacy.WrapRecall(out) + "\n"
	}
	_, err := io.WriteString(w, out)
	return err
}

// Snippet flattens text to one line capped for display.
func Snippet(text string) string {
	return normalize.Truncate(strings.Join(strings.Fields(text), " "), snippetLen)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
