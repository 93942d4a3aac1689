package render

import (
	"strings"

	"github.com/thebtf/chatlens/internal/lod"
	"github.com/thebtf/chatlens/pkg/models"
)

// LOD0 is the collapsed prose view of a session.
type LOD0 struct {
	Before models.Transcript
	After  models.Transcript
	Text   string
}

// RenderLOD0 collapses the session transcript and formats it as
// "Label: text" paragraphs. A session without prose renders as "".
func RenderLOD0(session models.Session) LOD0 {
	userLabel, assistantLabel := Labels(session)
	before := session.Transcript(userLabel, assistantLabel)
	after := lod.CollapseTranscript(before)

	parts := make([]string, 0, len(after.Messages))
	for _, m := range after.Messages {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		parts = append(parts, m.Label+": "+m.Text)
	}
	text := ""
	if len(parts) > 0 {
		text = strings.Join(parts, "\n\n") + "\n"
	}
	return LOD0{Before: before, After: after, Text: text}
}
