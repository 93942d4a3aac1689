package lod

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/chatlens/pkg/models"
)

// Stats compares a transcript before and after collapse.
type Stats struct {
	BytesBefore  int `json:"bytes_before"`
	BytesAfter   int `json:"bytes_after"`
	TokensBefore int `json:"tokens_before"`
	TokensAfter  int `json:"tokens_after"`
}

// TokenSavings returns the fraction of tokens removed, 0 when empty.
func (s Stats) TokenSavings() float64 {
	if s.TokensBefore == 0 {
		return 0
	}
	return float64(s.TokensBefore-s.TokensAfter) / float64(s.TokensBefore)
}

// String renders a one-line report.
func (s Stats) String() string {
	return fmt.Sprintf("bytes %d → %d, tokens %d → %d (%.1f%% saved)",
		s.BytesBefore, s.BytesAfter, s.TokensBefore, s.TokensAfter, s.TokenSavings()*100)
}

// Counter counts cl100k tokens.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter loads the cl100k_base encoding.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load cl100k tokenizer: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the token count of text.
func (c *Counter) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode text: %w", err)
	}
	return len(ids), nil
}

// Measure compares the message texts of two transcripts.
func (c *Counter) Measure(before, after models.Transcript) (Stats, error) {
	b, a := joinMessages(before), joinMessages(after)
	tb, err := c.Count(b)
	if err != nil {
		return Stats{}, err
	}
	ta, err := c.Count(a)
	if err != nil {
		return Stats{}, err
	}
	return Stats{BytesBefore: len(b), BytesAfter: len(a), TokensBefore: tb, TokensAfter: ta}, nil
}

func joinMessages(t models.Transcript) string {
	var sb strings.Builder
	for _, m := range t.Messages {
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
