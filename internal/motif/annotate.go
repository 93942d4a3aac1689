package motif

import (
	"fmt"

	"github.com/thebtf/chatlens/pkg/models"
	"github.com/thebtf/chatlens/pkg/normalize"
)

// DefaultSimilarityThreshold is the minimum token Jaccard score for a fuzzy
// cross-session match. Scores equal to the threshold qualify.
const DefaultSimilarityThreshold = 0.5

// Annotator appends repetition markers to rendered actions.
type Annotator struct {
	threshold float64
}

// NewAnnotator creates an annotator. The threshold is clamped to [0, 1].
func NewAnnotator(threshold float64) *Annotator {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	return &Annotator{threshold: threshold}
}

// Threshold returns the effective similarity threshold.
func (a *Annotator) Threshold() float64 {
	return a.threshold
}

// Fingerprint returns the repetition key of a block.
func Fingerprint(block models.RenderedAction) string {
	return normalize.Fingerprint(block.PrimaryText())
}

// Annotate returns annotated copies of blocks in their original order,
// recording each block in state. The within-session and cross-session
// markers are independent; either, both or neither may be added. An index
// entry only produces a marker when it was seen in some other session.
func (a *Annotator) Annotate(state *SessionState, blocks []models.RenderedAction, index *CrossSessionIndex) []models.RenderedAction {
	out := make([]models.RenderedAction, len(blocks))
	for i, block := range blocks {
		annotated := block.Clone()
		fp := Fingerprint(block)

		if prior := state.Observe(fp); prior > 0 {
			annotated.Annotations = append(annotated.Annotations, SeenBefore(prior))
		}
		if m, ok := index.Lookup(fp, a.threshold); ok && seenElsewhere(m.Sessions, state.SessionID()) {
			annotated.Annotations = append(annotated.Annotations, SeenAcross(len(m.Sessions), m.Occurrences, m.Similarity))
		}
		out[i] = annotated
	}
	return out
}

// SeenBefore formats the within-session marker.
func SeenBefore(prior int) string {
	return fmt.Sprintf("— Seen before (%d× prior)", prior)
}

// SeenAcross formats the cross-session marker.
func SeenAcross(sessions, total int, score float64) string {
	return fmt.Sprintf("— Seen across %d sessions (%d× total, similarity=%.2f)", sessions, total, score)
}

func seenElsewhere(sessions []string, current string) bool {
	for _, s := range sessions {
		if s != current {
			return true
		}
	}
	return false
}
