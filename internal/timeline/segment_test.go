package timeline_test

import (
	"errors"
	"math"
	"testing"

	"splicer/internal/services"
	"splicer/internal/timeline"
)

func seg(start, end float64) timeline.Segment {
	return timeline.NewSegment(start, end)
}

func TestValidateAcceptsDisjointActiveSegments(t *testing.T) {
	segs := []timeline.Segment{seg(20, 30), seg(0, 10), seg(45, 50)}
	if err := timeline.Validate(segs); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if got := timeline.TotalDuration(segs); got != 25 {
		t.Fatalf("TotalDuration = %v, want 25", got)
	}
}

func TestValidateRejectsBadSegments(t *testing.T) {
	deletedOverlap := seg(5, 15)
	deletedOverlap.IsDeleted = true

	tests := []struct {
		name string
		segs []timeline.Segment
		ok   bool
	}{
		{name: "end equals start", segs: []timeline.Segment{seg(5, 5)}},
		{name: "end before start", segs: []timeline.Segment{seg(6, 5)}},
		{name: "negative start", segs: []timeline.Segment{seg(-1, 5)}},
		{name: "nan", segs: []timeline.Segment{seg(math.NaN(), 5)}},
		{name: "overlap", segs: []timeline.Segment{seg(10, 20), seg(0, 11)}},
		{name: "touching is fine", segs: []timeline.Segment{seg(0, 10), seg(10, 20)}, ok: true},
		{name: "deleted may overlap", segs: []timeline.Segment{seg(0, 10), deletedOverlap}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := timeline.Validate(tt.segs)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, services.ErrInvalidSegment) {
				t.Fatalf("expected ErrInvalidSegment, got %v", err)
			}
		})
	}
}

func TestValidateWithinRejectsPastSourceEnd(t *testing.T) {
	err := timeline.ValidateWithin([]timeline.Segment{seg(0, 61)}, 60)
	if !errors.Is(err, services.ErrInvalidSegment) {
		t.Fatalf("expected ErrInvalidSegment, got %v", err)
	}
	if err := timeline.ValidateWithin([]timeline.Segment{seg(0, 60)}, 60); err != nil {
		t.Fatalf("segment ending at source end rejected: %v", err)
	}
}

func TestActiveSortsWithoutMutatingInput(t *testing.T) {
	deleted := seg(1, 2)
	deleted.IsDeleted = true
	in := []timeline.Segment{seg(30, 40), deleted, seg(0, 10)}
	out := timeline.Active(in)
	if len(out) != 2 || out[0].StartTime != 0 || out[1].StartTime != 30 {
		t.Fatalf("unexpected active order: %+v", out)
	}
	if in[0].StartTime != 30 {
		t.Fatal("input slice was reordered")
	}
}

func TestComplementAndTiles(t *testing.T) {
	silence := []timeline.Interval{timeline.NewInterval(50, 53), timeline.NewInterval(10, 12)}
	speech := timeline.Complement(silence, 120)
	want := [][2]float64{{0, 10}, {12, 50}, {53, 120}}
	if len(speech) != len(want) {
		t.Fatalf("got %d speech intervals, want %d", len(speech), len(want))
	}
	for i, w := range want {
		if speech[i].Start != w[0] || speech[i].End != w[1] || speech[i].Duration != w[1]-w[0] {
			t.Fatalf("speech[%d] = %+v, want %v", i, speech[i], w)
		}
	}
	if !timeline.Tiles(silence, speech, 120, 1e-9) {
		t.Fatal("silence and speech should tile [0, 120]")
	}
	if timeline.Tiles(silence, speech[:2], 120, 1e-9) {
		t.Fatal("missing tail should not tile")
	}
}
