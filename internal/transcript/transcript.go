package transcript

import (
	"fmt"
	"math"
	"strings"

	"splicer/internal/services"
	"splicer/internal/timeline"
)

// Segment is one timed transcript entry, in seconds relative to its media.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a remapped transcript.
type Result struct {
	Segments []Segment `json:"segments"`
	Text     string    `json:"text"`
}

// SyncRange keeps entries overlapping [t0, t1) and shifts them so t0 becomes
// zero, clamping to the new bounds.
func SyncRange(src []Segment, t0, t1 float64) (*Result, error) {
	if src == nil {
		return nil, nil
	}
	if t0 < 0 || t1 <= t0 || math.IsNaN(t0) || math.IsNaN(t1) {
		return nil, services.Wrap(services.ErrValidation, "transcript", "sync range",
			fmt.Sprintf("invalid range [%.3f, %.3f)", t0, t1), nil)
	}
	span := t1 - t0
	out := make([]Segment, 0, len(src))
	for _, seg := range src {
		if !(seg.End > t0 && seg.Start < t1) {
			continue
		}
		start := roundMillis(math.Max(0, seg.Start-t0))
		end := roundMillis(math.Min(span, seg.End-t0))
		if end <= start {
			continue
		}
		out = append(out, Segment{Start: start, End: end, Text: seg.Text})
	}
	return newResult(out), nil
}

// SyncAssembly keeps entries that fall entirely inside one active segment and
// places them on the concatenated output timeline.
func SyncAssembly(src []Segment, segments []timeline.Segment) (*Result, error) {
	if src == nil {
		return nil, nil
	}
	if err := timeline.Validate(segments); err != nil {
		return nil, err
	}
	out := make([]Segment, 0, len(src))
	offset := 0.0
	for _, seg := range timeline.Active(segments) {
		for _, entry := range src {
			if entry.Start >= seg.StartTime && entry.End <= seg.EndTime && entry.End > entry.Start {
				start := roundMillis(entry.Start - seg.StartTime + offset)
				end := roundMillis(entry.End - seg.StartTime + offset)
				if end > start {
					out = append(out, Segment{Start: start, End: end, Text: entry.Text})
				}
			}
		}
		offset += seg.Duration()
	}
	return newResult(out), nil
}

// Validate checks 0 <= start < end <= duration for every entry. A
// non-positive duration skips the upper bound.
func Validate(segs []Segment, duration float64) error {
	const slack = 0.0005
	for i, seg := range segs {
		if seg.Start < 0 || seg.End <= seg.Start {
			return services.Wrap(services.ErrValidation, "transcript", "validate",
				fmt.Sprintf("entry %d has bounds [%.3f, %.3f]", i, seg.Start, seg.End), nil)
		}
		if duration > 0 && seg.End > duration+slack {
			return services.Wrap(services.ErrValidation, "transcript", "validate",
				fmt.Sprintf("entry %d ends at %.3f past duration %.3f", i, seg.End, duration), nil)
		}
	}
	return nil
}

// JoinText flattens entry texts in order.
func JoinText(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func newResult(segs []Segment) *Result {
	return &Result{Segments: segs, Text: JoinText(segs)}
}

func roundMillis(v float64) float64 {
	return math.Round(v*1000) / 1000
}
