package timeline

import (
	"math"
	"sort"
)

// Interval is a half-open [Start, End) range in seconds used for silence and
// speech detection results.
type Interval struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// NewInterval builds an interval with its duration filled in.
func NewInterval(start, end float64) Interval {
	return Interval{Start: start, End: end, Duration: end - start}
}

// Complement returns the gaps of [0, total] not covered by intervals. The
// input may be unsorted or overlapping.
func Complement(intervals []Interval, total float64) []Interval {
	merged := Merge(intervals)
	var out []Interval
	cursor := 0.0
	for _, iv := range merged {
		start := math.Max(0, iv.Start)
		end := math.Min(total, iv.End)
		if end <= start {
			continue
		}
		if start > cursor {
			out = append(out, NewInterval(cursor, start))
		}
		if end > cursor {
			cursor = end
		}
	}
	if cursor < total {
		out = append(out, NewInterval(cursor, total))
	}
	return out
}

// Merge sorts intervals and coalesces overlapping or touching ones.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
				last.Duration = last.End - last.Start
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Tiles reports whether a and b together cover [0, total] with no gaps or
// overlaps, within tolerance seconds.
func Tiles(a, b []Interval, total, tolerance float64) bool {
	all := make([]Interval, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	sort.Slice(all, func(i, j int) bool { return all[i].Start < all[j].Start })

	cursor := 0.0
	for _, iv := range all {
		if math.Abs(iv.Start-cursor) > tolerance {
			return false
		}
		if iv.End <= iv.Start {
			return false
		}
		cursor = iv.End
	}
	return math.Abs(cursor-total) <= tolerance
}
