package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"splicer/internal/encoder"
	"splicer/internal/media/ffprobe"
	"splicer/internal/services"
)

// FakeEncoder records specs and writes a small deterministic output file for
// each run. The reported duration equals Spec.ExpectedDuration plus Drift.
type FakeEncoder struct {
	mu    sync.Mutex
	Specs []encoder.Spec
	// Err, when set, is returned after writing and then removing a partial file.
	Err    error
	Drift  float64
	Width  int
	Height int
}

// Run implements encoder.Encoder.
func (f *FakeEncoder) Run(ctx context.Context, spec encoder.Spec, progress encoder.ProgressFunc) (encoder.ArtifactStats, error) {
	f.mu.Lock()
	f.Specs = append(f.Specs, spec)
	err := f.Err
	f.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return encoder.ArtifactStats{}, services.Wrap(services.ErrCancelled, "fake encoder", "run", "", ctxErr)
	}
	if mkErr := os.MkdirAll(filepath.Dir(spec.Output), 0o755); mkErr != nil {
		return encoder.ArtifactStats{}, mkErr
	}
	data := []byte("rendered:" + spec.Output)
	if writeErr := os.WriteFile(spec.Output, data, 0o644); writeErr != nil {
		return encoder.ArtifactStats{}, writeErr
	}
	if err != nil {
		_ = os.Remove(spec.Output)
		return encoder.ArtifactStats{}, err
	}
	if progress != nil {
		progress(50)
		progress(100)
	}
	return encoder.ArtifactStats{
		Path:            spec.Output,
		SizeBytes:       int64(len(data)),
		DurationSeconds: spec.ExpectedDuration + f.Drift,
		Width:           f.Width,
		Height:          f.Height,
		Format:          "mp4",
	}, nil
}

// Calls returns the number of recorded runs.
func (f *FakeEncoder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Specs)
}

// LastSpec returns the most recent spec.
func (f *FakeEncoder) LastSpec() encoder.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Specs) == 0 {
		return encoder.Spec{}
	}
	return f.Specs[len(f.Specs)-1]
}

// FakeProber returns a fixed result for every path.
type FakeProber struct {
	Result ffprobe.Result
	Err    error
}

// Probe implements ffprobe.Prober.
func (f FakeProber) Probe(context.Context, string) (ffprobe.Result, error) {
	return f.Result, f.Err
}

// MediaResult builds a probe result with video and audio streams.
func MediaResult(duration string, width, height int) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{CodecType: "video", Width: width, Height: height, AvgFrameRate: "30/1"},
			{CodecType: "audio"},
		},
		Format: ffprobe.Format{Duration: duration, FormatName: "mov,mp4"},
	}
}
