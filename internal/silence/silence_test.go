package silence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"splicer/internal/media/ffprobe"
	"splicer/internal/services"
	"splicer/internal/timeline"
)

const sampleReport = `Input #0, wav, from 'talk.wav':
  Duration: 00:02:00.00, bitrate: 1411 kb/s
[silencedetect @ 0x5581] silence_start: 10
[silencedetect @ 0x5581] silence_end: 12 | silence_duration: 2
[silencedetect @ 0x5581] silence_start: 50
[silencedetect @ 0x5581] silence_end: 53 | silence_duration: 3
size=N/A time=00:02:00.00 bitrate=N/A speed= 900x
`

func assertIntervals(t *testing.T, got []timeline.Interval, want [][2]float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d intervals %+v, want %v", len(got), got, want)
	}
	for i, w := range want {
		if got[i].Start != w[0] || got[i].End != w[1] {
			t.Fatalf("interval %d = [%v, %v], want %v", i, got[i].Start, got[i].End, w)
		}
	}
}

func TestParseAndSpeechExample(t *testing.T) {
	silence, err := ParseSilenceOutput(strings.NewReader(sampleReport), 120)
	if err != nil {
		t.Fatalf("ParseSilenceOutput: %v", err)
	}
	assertIntervals(t, silence, [][2]float64{{10, 12}, {50, 53}})

	speech, adjusted := SpeechFromSilence(silence, 120, 0.3)
	assertIntervals(t, speech, [][2]float64{{0, 10}, {12, 50}, {53, 120}})
	if !timeline.Tiles(speech, adjusted, 120, 1e-9) {
		t.Fatal("speech and silence must tile the full duration")
	}
}

func TestTrailingSilenceClosedAtTotal(t *testing.T) {
	report := "[silencedetect @ 0x1] silence_start: -0.01\n[silencedetect @ 0x1] silence_end: 1.5 | silence_duration: 1.51\n[silencedetect @ 0x1] silence_start: 58\n"
	silence, err := ParseSilenceOutput(strings.NewReader(report), 60)
	if err != nil {
		t.Fatalf("ParseSilenceOutput: %v", err)
	}
	assertIntervals(t, silence, [][2]float64{{0, 1.5}, {58, 60}})
}

func TestNoSilenceYieldsSingleSpeechSpan(t *testing.T) {
	speech, silence := SpeechFromSilence(nil, 42, 0.3)
	assertIntervals(t, speech, [][2]float64{{0, 42}})
	if len(silence) != 0 {
		t.Fatalf("expected no silence, got %+v", silence)
	}
}

func TestShortSpeechMergedIntoSilence(t *testing.T) {
	silence := []timeline.Interval{timeline.NewInterval(10, 12), timeline.NewInterval(12.2, 14)}
	speech, adjusted := SpeechFromSilence(silence, 30, 0.5)
	assertIntervals(t, speech, [][2]float64{{0, 10}, {14, 30}})
	assertIntervals(t, adjusted, [][2]float64{{10, 14}})
	if !timeline.Tiles(speech, adjusted, 30, 1e-9) {
		t.Fatal("expected exact tiling after merge")
	}
}

func TestToTimeline(t *testing.T) {
	segs := ToTimeline([]timeline.Interval{timeline.NewInterval(0, 10), timeline.NewInterval(12, 50)})
	if len(segs) != 2 || segs[1].StartTime != 12 || segs[1].IsDeleted || segs[0].ID == "" {
		t.Fatalf("unexpected segments %+v", segs)
	}
	if err := timeline.Validate(segs); err != nil {
		t.Fatalf("converted segments invalid: %v", err)
	}
}

type fakeProber struct{ result ffprobe.Result }

func (f fakeProber) Probe(context.Context, string) (ffprobe.Result, error) { return f.result, nil }

func TestDetectRunsFFmpeg(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\ncat >&2 <<'EOF'\n" + sampleReport + "EOF\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	prober := fakeProber{result: ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "audio"}},
		Format:  ffprobe.Format{Duration: "120"},
	}}
	analysis, err := NewDetector(bin, prober, nil).Detect(context.Background(), "talk.wav", Options{ThresholdDB: -35, MinSilence: 0.8, MinSegment: 0.3})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	assertIntervals(t, analysis.Speech, [][2]float64{{0, 10}, {12, 50}, {53, 120}})
	if analysis.TotalDuration != 120 {
		t.Fatalf("unexpected total %v", analysis.TotalDuration)
	}
}

func TestDetectMissingTool(t *testing.T) {
	_, err := NewDetector("/nonexistent/ffmpeg", fakeProber{}, nil).Detect(context.Background(), "a.wav", Options{ThresholdDB: -35, MinSilence: 0.8})
	if !errors.Is(err, services.ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
}

func TestDetectWithoutDuration(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := NewDetector(bin, fakeProber{}, nil).Detect(context.Background(), "a.wav", Options{ThresholdDB: -35, MinSilence: 0.8})
	if !errors.Is(err, services.ErrProbeFailure) {
		t.Fatalf("expected ErrProbeFailure, got %v", err)
	}
}
