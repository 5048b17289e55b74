package compositor_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"splicer/internal/compositor"
	"splicer/internal/config"
	"splicer/internal/services"
	"splicer/internal/testsupport"
	"splicer/internal/timeline"
)

func newCompositor(enc *testsupport.FakeEncoder, duration string) *compositor.Compositor {
	prober := testsupport.FakeProber{Result: testsupport.MediaResult(duration, 1920, 1080)}
	return compositor.New(enc, prober, config.Default().Encoder, nil)
}

func TestComposeThreeSegments(t *testing.T) {
	enc := &testsupport.FakeEncoder{}
	c := newCompositor(enc, "60")
	out := filepath.Join(t.TempDir(), "cut.mp4")
	segs := []timeline.Segment{
		timeline.NewSegment(45, 50),
		timeline.NewSegment(0, 10),
		timeline.NewSegment(20, 30),
	}

	stats, err := c.Compose(context.Background(), compositor.Request{Source: "in.mp4", Segments: segs, Output: out}, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if math.Abs(stats.DurationSeconds-25) > 1.0/30 {
		t.Fatalf("duration = %v, want 25 within one frame", stats.DurationSeconds)
	}
	graph := enc.LastSpec().Graph.String()
	if strings.Count(graph, "]trim=") != 3 || strings.Count(graph, "]atrim=") != 3 {
		t.Fatalf("expected 3 trim pairs, got %s", graph)
	}
	first := strings.Index(graph, "trim=start=0:")
	second := strings.Index(graph, "trim=start=20:")
	third := strings.Index(graph, "trim=start=45:")
	if first < 0 || !(first < second && second < third) {
		t.Fatalf("segments not in ascending order: %s", graph)
	}
}

func TestComposeRejectsAllDeleted(t *testing.T) {
	seg := timeline.NewSegment(0, 10)
	seg.IsDeleted = true
	enc := &testsupport.FakeEncoder{}
	_, err := newCompositor(enc, "60").Compose(context.Background(), compositor.Request{Source: "in.mp4", Segments: []timeline.Segment{seg}, Output: "x.mp4"}, nil)
	if !errors.Is(err, services.ErrNoActiveSegments) {
		t.Fatalf("expected ErrNoActiveSegments, got %v", err)
	}
	if enc.Calls() != 0 {
		t.Fatal("encoder must not run")
	}
}

func TestComposeRejectsOverlapAndPastEnd(t *testing.T) {
	c := newCompositor(&testsupport.FakeEncoder{}, "60")
	cases := [][]timeline.Segment{
		{timeline.NewSegment(0, 10), timeline.NewSegment(5, 15)},
		{timeline.NewSegment(50, 70)},
	}
	for _, segs := range cases {
		_, err := c.Compose(context.Background(), compositor.Request{Source: "in.mp4", Segments: segs, Output: "x.mp4"}, nil)
		if !errors.Is(err, services.ErrInvalidSegment) {
			t.Fatalf("expected ErrInvalidSegment, got %v", err)
		}
	}
}

func TestComposeFastPathForWholeSource(t *testing.T) {
	enc := &testsupport.FakeEncoder{}
	out := filepath.Join(t.TempDir(), "copy.mp4")
	_, err := newCompositor(enc, "60").Compose(context.Background(), compositor.Request{
		Source:   "in.mp4",
		Segments: []timeline.Segment{timeline.NewSegment(0, 59.99)},
		Output:   out,
	}, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	spec := enc.LastSpec()
	if spec.Graph != nil || strings.Join(spec.OutputArgs, " ") != "-c copy" {
		t.Fatalf("expected stream copy spec, got %+v", spec)
	}
}

func TestComposeDurationMismatchRemovesOutput(t *testing.T) {
	enc := &testsupport.FakeEncoder{Drift: 1.5}
	out := filepath.Join(t.TempDir(), "cut.mp4")
	_, err := newCompositor(enc, "60").Compose(context.Background(), compositor.Request{
		Source:   "in.mp4",
		Segments: []timeline.Segment{timeline.NewSegment(0, 10), timeline.NewSegment(20, 30)},
		Output:   out,
	}, nil)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected output removed, stat err=%v", statErr)
	}
}

func TestComposeEncoderFailureRemovesOutput(t *testing.T) {
	enc := &testsupport.FakeEncoder{Err: services.Wrap(services.ErrProcessing, "fake", "run", "boom", nil)}
	out := filepath.Join(t.TempDir(), "cut.mp4")
	_, err := newCompositor(enc, "60").Compose(context.Background(), compositor.Request{
		Source:   "in.mp4",
		Segments: []timeline.Segment{timeline.NewSegment(0, 10), timeline.NewSegment(20, 30)},
		Output:   out,
	}, nil)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected output removed, stat err=%v", statErr)
	}
}
