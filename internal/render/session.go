// Package render turns catalog sessions into markdown transcripts with
// compressed action blocks, repetition markers and session summaries.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/thebtf/chatlens/internal/matcher"
	"github.com/thebtf/chatlens/internal/motif"
	"github.com/thebtf/chatlens/pkg/models"
)

// Default speaker labels when a session records none.
const (
	DefaultUserLabel      = "USER"
	DefaultAssistantLabel = "Assistant"
)

// Options configures a Renderer.
type Options struct {
	// Raw embeds pruned payloads, keeps noise events and omits annotations
	// and session summaries.
	Raw          bool
	SequenceTopN int
	RepeatTopN   int
}

// Renderer renders sessions. It holds no per-session state, so one
// renderer may serve concurrent renders.
type Renderer struct {
	matcher   *matcher.Matcher
	annotator *motif.Annotator
	index     *motif.CrossSessionIndex
	opts      Options
}

// New creates a renderer. A nil matcher or annotator uses the defaults; a
// nil index disables cross-session markers.
func New(mt *matcher.Matcher, annotator *motif.Annotator, index *motif.CrossSessionIndex, opts Options) *Renderer {
	if mt == nil {
		mt = matcher.New(nil, matcher.DefaultOptions())
	}
	if annotator == nil {
		annotator = motif.NewAnnotator(motif.DefaultSimilarityThreshold)
	}
	if opts.SequenceTopN <= 0 {
		opts.SequenceTopN = motif.DefaultSequenceTopN
	}
	if opts.RepeatTopN <= 0 {
		opts.RepeatTopN = motif.DefaultRepeatTopN
	}
	return &Renderer{matcher: mt, annotator: annotator, index: index, opts: opts}
}

// TurnBlocks is the rendered actions of one turn.
type TurnBlocks struct {
	Turn   models.Turn
	Blocks []models.RenderedAction
}

// Result is a rendered session.
type Result struct {
	Markdown string
	Turns    []TurnBlocks
	Summary  motif.Summary
	Statuses map[models.TurnStatus]int
}

// Blocks returns every action block in render order.
func (r *Result) Blocks() []models.RenderedAction {
	var out []models.RenderedAction
	for _, t := range r.Turns {
		out = append(out, t.Blocks...)
	}
	return out
}

// Actions matches and annotates every turn of session with a fresh
// session state. It is the step shared by rendering and aggregation.
func (r *Renderer) Actions(session models.Session) []TurnBlocks {
	state := motif.NewSessionState(session.ID)
	out := make([]TurnBlocks, len(session.Turns))
	for i, t := range session.Turns {
		blocks := r.matcher.Match(t.Events, r.opts.Raw)
		if !r.opts.Raw {
			blocks = r.annotator.Annotate(state, blocks, r.index)
		}
		out[i] = TurnBlocks{Turn: t, Blocks: blocks}
	}
	return out
}

// Render produces the markdown transcript of session.
func (r *Renderer) Render(session models.Session) *Result {
	res := &Result{Turns: r.Actions(session), Statuses: map[models.TurnStatus]int{}}

	userLabel, assistantLabel := Labels(session)
	lines := header(session)
	if len(session.Turns) == 0 {
		lines = append(lines, "", "_No conversation turns stored in this session._")
		res.Markdown = strings.Join(squeeze(lines), "\n") + "\n"
		return res
	}

	for i, tb := range res.Turns {
		res.Statuses[tb.Turn.Status]++
		lines = append(lines, "", fmt.Sprintf("## Turn %d", i+1))
		lines = append(lines, r.turnLines(tb, userLabel, assistantLabel)...)
	}

	if !r.opts.Raw {
		res.Summary = motif.Summarize(res.Blocks(), r.opts.SequenceTopN, r.opts.RepeatTopN)
		lines = append(lines, summaryLines(res.Summary, res.Statuses)...)
	}

	res.Markdown = strings.Join(squeeze(lines), "\n") + "\n"
	return res
}

// Labels returns the speaker labels of a session.
func Labels(session models.Session) (user, assistant string) {
	user, assistant = session.Requester, session.Responder
	if strings.TrimSpace(user) == "" {
		user = DefaultUserLabel
	}
	if strings.TrimSpace(assistant) == "" {
		assistant = DefaultAssistantLabel
	}
	return user, assistant
}

func header(s models.Session) []string {
	lines := []string{"# Chat Session — " + orDefault(s.ID, "unknown-session"), ""}
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, "- "+label+": "+value)
		}
	}
	add("Requester", s.Requester)
	add("Responder", s.Responder)
	add("Initial location", s.InitialLocation)
	add("Workspace", s.WorkspaceFingerprint)
	add("Created", isoMillis(s.CreatedAtMs))
	add("Last message", isoMillis(s.LastMessageAtMs))
	return lines
}

func (r *Renderer) turnLines(tb TurnBlocks, userLabel, assistantLabel string) []string {
	t := tb.Turn
	lines := []string{"", "### " + userLabel}
	if strings.TrimSpace(t.Prompt) != "" {
		lines = append(lines, "", t.Prompt)
	} else {
		lines = append(lines, "", "_No user prompt recorded._")
	}
	if ts := isoMillis(t.TimestampMs); ts != "" {
		lines = append(lines, "", "> _Timestamp_: "+ts)
	}

	lines = append(lines, "", "### "+assistantLabel)
	if strings.TrimSpace(t.Response) != "" {
		lines = append(lines, "", t.Response)
	} else {
		lines = append(lines, "", "> _No assistant response recorded._")
	}

	if len(tb.Blocks) > 0 {
		summary := motif.JoinCounts(motif.RankTitles(matcher.CountTitles(tb.Blocks)))
		if t.Status != "" && t.Status != models.TurnStatusOK {
			summary += " · Status: " + string(t.Status)
		}
		lines = append(lines, "", "> _Actions this turn_: "+summary)
		lines = append(lines, "", "#### Actions", "")
		if t.Status == models.TurnStatusCanceled || t.Status == models.TurnStatusTerminated {
			lines = append(lines, "_Status: "+string(t.Status)+"_", "")
		}
		for i, b := range tb.Blocks {
			if i > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, b.Lines(r.opts.Raw)...)
		}
	}

	if t.Status == models.TurnStatusCanceled {
		lines = append(lines, "", "> _Request marked as cancelled._")
	}
	return lines
}

func summaryLines(sum motif.Summary, statuses map[models.TurnStatus]int) []string {
	var lines []string
	if len(sum.Actions) > 0 {
		lines = append(lines, "", "## Actions summary", "", "- "+motif.JoinCounts(sum.Actions))
	}

	if bits := statusBits(statuses); bits != "" {
		lines = append(lines, "", "## Status summary", "", "- "+bits)
	}

	if len(sum.Repeats) > 0 {
		lines = append(lines, "", "## Motifs (repeats)", "")
		for _, rep := range sum.Repeats {
			lines = append(lines, fmt.Sprintf("- %d× — %s", rep.Count, rep.Exemplar))
		}
	}

	if !sum.Sequences.Empty() {
		lines = append(lines, "", "## Sequence motifs", "")
		if len(sum.Sequences.Bigrams) > 0 {
			lines = append(lines, "- Bigrams:")
			for _, s := range sum.Sequences.Bigrams {
				lines = append(lines, fmt.Sprintf("  - %d× — %s", s.Count, s))
			}
		}
		if len(sum.Sequences.Trigrams) > 0 {
			lines = append(lines, "- Trigrams:")
			for _, s := range sum.Sequences.Trigrams {
				lines = append(lines, fmt.Sprintf("  - %d× — %s", s.Count, s))
			}
		}
	}

	return lines
}

// statusBits lists non-OK statuses, or OK alone when every turn succeeded.
func statusBits(statuses map[models.TurnStatus]int) string {
	counts := map[string]int{}
	for s, n := range statuses {
		if s != models.TurnStatusOK && s != "" && n > 0 {
			counts[string(s)] = n
		}
	}
	if len(counts) == 0 {
		n := statuses[models.TurnStatusOK] + statuses[""]
		if n == 0 {
			return ""
		}
		counts[string(models.TurnStatusOK)] = n
	}
	return motif.JoinCounts(motif.RankTitles(counts))
}

// squeeze collapses runs of blank lines and trims blank edges.
func squeeze(lines []string) []string {
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, l)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func isoMillis(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
