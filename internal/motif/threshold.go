package motif

import (
	"math"
	"sort"
	"time"
)

const (
	// DefaultPercentile selects the actionable threshold among recent failures.
	DefaultPercentile = 0.9
	// DefaultWindow is how far back a failure counts as recent.
	DefaultWindow = 7 * 24 * time.Hour
	// FallbackThreshold applies when the catalog holds no failure telemetry.
	FallbackThreshold = 0.8
)

// OccurrenceScore maps a repeat count onto [0, 1): 1 - e^-count. Three
// occurrences score about 0.95.
func OccurrenceScore(count int) float64 {
	if count <= 0 {
		return 0
	}
	return 1 - math.Exp(-float64(count))
}

// Percentile linearly interpolates the p-th percentile of values, with p
// clamped to [0, 1]. It returns false for no values.
func Percentile(values []float64, p float64) (float64, bool) {
	items := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			items = append(items, v)
		}
	}
	if len(items) == 0 {
		return 0, false
	}
	sort.Float64s(items)
	switch {
	case p <= 0:
		return items[0], true
	case p >= 1:
		return items[len(items)-1], true
	}
	pos := p * float64(len(items)-1)
	lower, upper := math.Floor(pos), math.Ceil(pos)
	lo, hi := items[int(lower)], items[int(upper)]
	return lo + (pos-lower)*(hi-lo), true
}

// Threshold is a computed actionable similarity threshold.
type Threshold struct {
	Value      float64 `json:"threshold"`
	Samples    int     `json:"samples"`
	Percentile float64 `json:"percentile"`
	Fallback   bool    `json:"fallback_used"`
	// WindowStartMs is zero when every failure was used because none was recent.
	WindowStartMs int64 `json:"window_start_ms,omitempty"`
	WindowEndMs   int64 `json:"window_end_ms"`
}

// ActionableThreshold takes the DefaultPercentile of occurrence scores over
// failures seen within DefaultWindow of now. With no recent failures it uses
// all of them, and with none at all it returns FallbackThreshold.
func ActionableThreshold(failures []RepeatFailure, now time.Time) Threshold {
	end := now.UnixMilli()
	start := now.Add(-DefaultWindow).UnixMilli()
	res := Threshold{Value: FallbackThreshold, Percentile: DefaultPercentile, Fallback: true, WindowEndMs: end}

	var recent, all []float64
	for _, f := range failures {
		score := OccurrenceScore(f.Occurrences)
		all = append(all, score)
		if f.LastSeenMs >= start {
			recent = append(recent, score)
		}
	}
	if v, ok := Percentile(recent, DefaultPercentile); ok {
		res.Value, res.Samples, res.Fallback, res.WindowStartMs = v, len(recent), false, start
		return res
	}
	if v, ok := Percentile(all, DefaultPercentile); ok {
		res.Value, res.Samples, res.Fallback = v, len(all), false
	}
	return res
}
