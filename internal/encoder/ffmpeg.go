package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"splicer/internal/fileutil"
	"splicer/internal/logging"
	"splicer/internal/media/ffprobe"
	"splicer/internal/services"
)

const (
	stderrTailBytes = 8 * 1024
	stderrTailLines = 6
	killGrace       = 5 * time.Second
)

var commandContext = exec.CommandContext

// FFmpeg runs renders through the ffmpeg binary.
type FFmpeg struct {
	binary string
	prober ffprobe.Prober
	logger *slog.Logger
}

// NewFFmpeg constructs an FFmpeg encoder. Output stats are probed with prober.
func NewFFmpeg(binary string, prober ffprobe.Prober, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary: binary,
		prober: prober,
		logger: logging.NewComponentLogger(logger, "encoder"),
	}
}

// Args assembles the full ffmpeg argument list for spec.
func Args(spec Spec) ([]string, error) {
	if len(spec.Inputs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "encoder", "build args", "no inputs", nil)
	}
	if strings.TrimSpace(spec.Output) == "" {
		return nil, services.Wrap(services.ErrValidation, "encoder", "build args", "no output path", nil)
	}
	args := []string{"-hide_banner", "-nostdin", "-y"}
	args = append(args, spec.InputArgs...)
	for _, in := range spec.Inputs {
		args = append(args, "-i", in)
	}
	maps := spec.Maps
	switch {
	case spec.Graph != nil:
		if err := spec.Graph.Validate(); err != nil {
			return nil, err
		}
		args = append(args, "-filter_complex", spec.Graph.String())
		if len(maps) == 0 {
			for _, pad := range spec.Graph.Outputs() {
				maps = append(maps, pad.String())
			}
		}
	case spec.VideoFilter != nil:
		args = append(args, "-vf", spec.VideoFilter.String())
	}
	for _, m := range maps {
		args = append(args, "-map", m)
	}
	args = append(args, spec.OutputArgs...)
	args = append(args, "-progress", "pipe:1", "-nostats", spec.Output)
	return args, nil
}

// Run implements Encoder.
func (f *FFmpeg) Run(ctx context.Context, spec Spec, progress ProgressFunc) (ArtifactStats, error) {
	args, err := Args(spec)
	if err != nil {
		return ArtifactStats{}, err
	}
	if _, err := exec.LookPath(f.binary); err != nil {
		return ArtifactStats{}, services.Wrap(services.ErrToolUnavailable, "encoder", "lookup", f.binary, err)
	}
	if err := os.MkdirAll(filepath.Dir(spec.Output), 0o755); err != nil {
		return ArtifactStats{}, services.Wrap(services.ErrProcessing, "encoder", "prepare output", spec.Output, err)
	}

	logger := logging.WithContext(ctx, f.logger)
	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := commandContext(runCtx, f.binary, args...)
	cmd.WaitDelay = killGrace
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ArtifactStats{}, services.Wrap(services.ErrProcessing, "encoder", "stdout pipe", "", err)
	}

	logger.Debug("ffmpeg starting", logging.String("output", spec.Output), logging.Any("args", args))
	started := time.Now()
	if err := cmd.Start(); err != nil {
		return ArtifactStats{}, services.Wrap(services.ErrProcessing, "encoder", "start", f.binary, err)
	}

	tracker := newProgressTracker(spec.ExpectedDuration)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if pct, ok := tracker.feed(scanner.Text()); ok && progress != nil {
			progress(pct)
		}
	}
	waitErr := cmd.Wait()

	if waitErr != nil {
		_ = fileutil.RemovePartial(spec.Output)
		return ArtifactStats{}, f.classify(ctx, runCtx, spec, waitErr, stderr)
	}

	stats, err := f.stats(ctx, spec.Output)
	if err != nil {
		_ = fileutil.RemovePartial(spec.Output)
		return ArtifactStats{}, err
	}
	logger.Debug("ffmpeg finished",
		logging.String("output", spec.Output),
		logging.Duration("elapsed", time.Since(started)),
		logging.Float64("duration_seconds", stats.DurationSeconds),
	)
	return stats, nil
}

func (f *FFmpeg) classify(parent, runCtx context.Context, spec Spec, waitErr error, stderr *tailBuffer) error {
	switch {
	case parent.Err() != nil:
		return services.Wrap(services.ErrCancelled, "encoder", "run", "render cancelled", parent.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "encoder", "run",
			fmt.Sprintf("exceeded %s", spec.Timeout), waitErr)
	}
	detail := stderr.Lines(stderrTailLines)
	if detail == "" {
		detail = "ffmpeg exited with an error"
	}
	return services.Wrap(services.ErrProcessing, "encoder", "run", detail, waitErr)
}

func (f *FFmpeg) stats(ctx context.Context, path string) (ArtifactStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ArtifactStats{}, services.Wrap(services.ErrProcessing, "encoder", "stat output", path, err)
	}
	stats := ArtifactStats{Path: path, SizeBytes: info.Size()}
	if f.prober == nil {
		return stats, nil
	}
	result, err := f.prober.Probe(ctx, path)
	if err != nil {
		return ArtifactStats{}, err
	}
	if stats.DurationSeconds, err = result.Duration(path); err != nil {
		return ArtifactStats{}, err
	}
	stats.Width, stats.Height = result.VideoDimensions()
	stats.Format = result.FormatName()
	return stats, nil
}
