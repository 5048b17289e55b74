package timeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"splicer/internal/services"
)

// Segment is one span of a source timeline, in seconds.
type Segment struct {
	ID        string    `json:"id"`
	StartTime float64   `json:"startTime"`
	EndTime   float64   `json:"endTime"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSegment returns an active segment with a fresh identifier.
func NewSegment(start, end float64) Segment {
	return Segment{
		ID:        uuid.NewString(),
		StartTime: start,
		EndTime:   end,
		CreatedAt: time.Now().UTC(),
	}
}

// Duration returns EndTime - StartTime.
func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

func (s Segment) check() error {
	if math.IsNaN(s.StartTime) || math.IsInf(s.StartTime, 0) || math.IsNaN(s.EndTime) || math.IsInf(s.EndTime, 0) {
		return invalid("segment %s has non-finite bounds", s.label())
	}
	if s.StartTime < 0 {
		return invalid("segment %s starts before zero (%.3f)", s.label(), s.StartTime)
	}
	if s.EndTime <= s.StartTime {
		return invalid("segment %s end %.3f is not after start %.3f", s.label(), s.EndTime, s.StartTime)
	}
	return nil
}

func (s Segment) label() string {
	if s.ID == "" {
		return "(unnamed)"
	}
	return s.ID
}

// Validate rejects malformed segments and overlapping active segments.
// Deleted segments must still be well formed but may overlap anything.
func Validate(segments []Segment) error {
	for _, seg := range segments {
		if err := seg.check(); err != nil {
			return err
		}
	}
	active := Active(segments)
	for i := 1; i < len(active); i++ {
		prev, cur := active[i-1], active[i]
		if cur.StartTime < prev.EndTime {
			return invalid("segments %s [%.3f, %.3f) and %s [%.3f, %.3f) overlap",
				prev.label(), prev.StartTime, prev.EndTime, cur.label(), cur.StartTime, cur.EndTime)
		}
	}
	return nil
}

// ValidateWithin runs Validate and also rejects active segments that end past
// the source duration. A non-positive duration skips the bound check.
func ValidateWithin(segments []Segment, duration float64) error {
	if err := Validate(segments); err != nil {
		return err
	}
	if duration <= 0 {
		return nil
	}
	const slack = 0.001
	for _, seg := range Active(segments) {
		if seg.EndTime > duration+slack {
			return invalid("segment %s ends at %.3f past source duration %.3f", seg.label(), seg.EndTime, duration)
		}
	}
	return nil
}

// Active returns the non-deleted segments sorted by start time. The input is
// not modified.
func Active(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if !seg.IsDeleted {
			out = append(out, seg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// TotalDuration sums the durations of active segments.
func TotalDuration(segments []Segment) float64 {
	total := 0.0
	for _, seg := range segments {
		if !seg.IsDeleted {
			total += seg.Duration()
		}
	}
	return total
}

func invalid(format string, args ...any) error {
	return services.Wrap(services.ErrInvalidSegment, "timeline", "validate", fmt.Sprintf(format, args...), nil)
}
