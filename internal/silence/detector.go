package silence

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/media/ffprobe"
	"splicer/internal/services"
	"splicer/internal/timeline"
)

var commandContext = exec.CommandContext

// Options are the detection thresholds.
type Options struct {
	ThresholdDB float64
	MinSilence  float64
	MinSegment  float64
}

// OptionsFromConfig returns the configured defaults.
func OptionsFromConfig(cfg config.Silence) Options {
	return Options{
		ThresholdDB: cfg.ThresholdDB,
		MinSilence:  cfg.MinSilenceSeconds,
		MinSegment:  cfg.MinSegmentSeconds,
	}
}

func (o Options) validate() error {
	if o.ThresholdDB >= 0 {
		return services.Wrap(services.ErrValidation, "silence", "options", "threshold must be negative dB", nil)
	}
	if o.MinSilence <= 0 {
		return services.Wrap(services.ErrValidation, "silence", "options", "minimum silence must be positive", nil)
	}
	if o.MinSegment < 0 {
		return services.Wrap(services.ErrValidation, "silence", "options", "minimum segment must not be negative", nil)
	}
	return nil
}

// Analysis is the detection result.
type Analysis struct {
	Silence       []timeline.Interval `json:"silence"`
	Speech        []timeline.Interval `json:"speech"`
	TotalDuration float64             `json:"totalDuration"`
}

// Detector runs silencedetect through ffmpeg.
type Detector struct {
	ffmpeg string
	prober ffprobe.Prober
	logger *slog.Logger
}

// NewDetector constructs a Detector.
func NewDetector(ffmpegBinary string, prober ffprobe.Prober, logger *slog.Logger) *Detector {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Detector{
		ffmpeg: ffmpegBinary,
		prober: prober,
		logger: logging.NewComponentLogger(logger, "silence"),
	}
}

// Detect analyses path and returns silence and speech intervals.
func (d *Detector) Detect(ctx context.Context, path string, opts Options) (Analysis, error) {
	if err := opts.validate(); err != nil {
		return Analysis{}, err
	}
	if _, err := exec.LookPath(d.ffmpeg); err != nil {
		return Analysis{}, services.Wrap(services.ErrToolUnavailable, "silence", "lookup", d.ffmpeg, err)
	}
	probe, err := d.prober.Probe(ctx, path)
	if err != nil {
		return Analysis{}, err
	}
	total, err := probe.Duration(path)
	if err != nil {
		return Analysis{}, err
	}
	if !probe.HasAudio() {
		return Analysis{}, services.Wrap(services.ErrProbeFailure, "silence", "probe", path+" has no audio stream", nil)
	}

	filter := fmt.Sprintf("silencedetect=noise=%sdB:d=%s",
		strconv.FormatFloat(opts.ThresholdDB, 'f', -1, 64),
		strconv.FormatFloat(opts.MinSilence, 'f', -1, 64))
	cmd := commandContext(ctx, d.ffmpeg, "-hide_banner", "-nostdin", "-i", path, "-vn", "-af", filter, "-f", "null", "-")
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Analysis{}, services.Wrap(services.ErrProcessing, "silence", "stderr pipe", "", err)
	}
	if err := cmd.Start(); err != nil {
		return Analysis{}, services.Wrap(services.ErrToolUnavailable, "silence", "start", d.ffmpeg, err)
	}

	p := &parser{total: total}
	var lastLine string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		p.line(line)
		if strings.TrimSpace(line) != "" {
			lastLine = line
		}
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return Analysis{}, services.Wrap(services.ErrCancelled, "silence", "detect", path, ctx.Err())
		}
		return Analysis{}, services.Wrap(services.ErrProcessing, "silence", "detect", strings.TrimSpace(lastLine), err)
	}

	raw := p.finish()
	speech, silence := SpeechFromSilence(raw, total, opts.MinSegment)
	logging.WithContext(ctx, d.logger).Info("silence detected",
		logging.String(logging.FieldEventType, "silence_detected"),
		logging.String("path", path),
		logging.Float64("duration_seconds", total),
		logging.Int("silent_ranges", len(silence)),
		logging.Int("speech_ranges", len(speech)),
	)
	return Analysis{Silence: silence, Speech: speech, TotalDuration: total}, nil
}
