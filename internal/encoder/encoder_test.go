package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"splicer/internal/filtergraph"
	"splicer/internal/media/ffprobe"
	"splicer/internal/services"
	"splicer/internal/timeline"
)

type stubProber struct {
	result ffprobe.Result
	err    error
}

func (s stubProber) Probe(context.Context, string) (ffprobe.Result, error) {
	return s.result, s.err
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor a; do out=\"$a\"; done\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestArgsWithGraph(t *testing.T) {
	g, _, err := filtergraph.TrimConcat([]timeline.Segment{timeline.NewSegment(0, 5)}, filtergraph.Streams{Video: true, Audio: true})
	if err != nil {
		t.Fatalf("TrimConcat: %v", err)
	}
	args, err := Args(Spec{
		Inputs:     []string{"in.mp4"},
		Graph:      g,
		OutputArgs: []string{"-c:v", "libx264"},
		Output:     "out.mp4",
	})
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-i in.mp4", "-filter_complex ", "-map [outv] -map [outa]", "-c:v libx264", "-progress pipe:1 -nostats out.mp4"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("output must be last, got %q", args[len(args)-1])
	}
}

func TestArgsRequiresInputsAndOutput(t *testing.T) {
	if _, err := Args(Spec{Output: "x.mp4"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := Args(Spec{Inputs: []string{"a"}}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProgressTrackerIsMonotonic(t *testing.T) {
	p := newProgressTracker(10)
	var got []float64
	for _, line := range []string{"frame=1", "out_time_us=2000000", "out_time_us=1000000", "out_time_ms=5000000", "progress=continue", "out_time_us=20000000", "progress=end"} {
		if pct, ok := p.feed(line); ok {
			got = append(got, pct)
		}
	}
	want := []float64{20, 50, 99, 100}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	tb := newTailBuffer(64)
	for i := 0; i < 20; i++ {
		_, _ = tb.Write([]byte("line of stderr output\n"))
	}
	_, _ = tb.Write([]byte("Invalid data found\n"))
	if got := tb.Lines(1); got != "Invalid data found" {
		t.Fatalf("Lines(1) = %q", got)
	}
}

func TestRunReportsProgressAndStats(t *testing.T) {
	bin := writeScript(t, `printf 'out_time_us=5000000\nprogress=continue\nout_time_us=10000000\nprogress=end\n'
printf 'rendered' > "$out"
`)
	prober := stubProber{result: ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", Width: 1280, Height: 720}},
		Format:  ffprobe.Format{Duration: "10.0", FormatName: "mov,mp4"},
	}}
	enc := NewFFmpeg(bin, prober, nil)
	out := filepath.Join(t.TempDir(), "renders", "out.mp4")

	var seen []float64
	stats, err := enc.Run(context.Background(), Spec{Inputs: []string{"in.mp4"}, Output: out, ExpectedDuration: 20}, func(p float64) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.SizeBytes != int64(len("rendered")) || stats.DurationSeconds != 10 || stats.Width != 1280 || stats.Format != "mov" {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(seen) != 3 || seen[len(seen)-1] != 100 {
		t.Fatalf("unexpected progress %v", seen)
	}
}

func TestRunFailureRemovesPartialOutput(t *testing.T) {
	bin := writeScript(t, `printf 'partial' > "$out"
echo "Conversion failed!" >&2
exit 1
`)
	out := filepath.Join(t.TempDir(), "out.mp4")
	_, err := NewFFmpeg(bin, nil, nil).Run(context.Background(), Spec{Inputs: []string{"in.mp4"}, Output: out}, nil)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}
	if !strings.Contains(err.Error(), "Conversion failed!") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected partial output removed, stat err=%v", statErr)
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	bin := writeScript(t, `printf 'partial' > "$out"
exec sleep 10
`)
	out := filepath.Join(t.TempDir(), "out.mp4")
	start := time.Now()
	_, err := NewFFmpeg(bin, nil, nil).Run(context.Background(), Spec{Inputs: []string{"in.mp4"}, Output: out, Timeout: 200 * time.Millisecond}, nil)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 8*time.Second {
		t.Fatal("timeout did not kill the subprocess promptly")
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected partial output removed, stat err=%v", statErr)
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := NewFFmpeg("/nonexistent/ffmpeg", nil, nil).Run(context.Background(), Spec{Inputs: []string{"a"}, Output: filepath.Join(t.TempDir(), "o.mp4")}, nil)
	if !errors.Is(err, services.ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
}
