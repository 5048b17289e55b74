// Package transcode renders an artifact into a named target format:
// letterboxed to exact dimensions, at a fixed frame rate, with optional
// burned-in subtitles.
package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"splicer/internal/config"
	"splicer/internal/encoder"
	"splicer/internal/fileutil"
	"splicer/internal/filtergraph"
	"splicer/internal/logging"
	"splicer/internal/media/ffprobe"
	"splicer/internal/services"
)

// Request describes one transcode.
type Request struct {
	Source        string
	Output        string
	Width         int
	Height        int
	SubtitlePath  string
	BurnSubtitles bool
	// FrameRate overrides the configured output rate when positive.
	FrameRate float64
}

// Transcoder builds scale/pad specs and runs them through an Encoder.
type Transcoder struct {
	enc    encoder.Encoder
	prober ffprobe.Prober
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs a Transcoder.
func New(enc encoder.Encoder, prober ffprobe.Prober, cfg *config.Config, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		enc:    enc,
		prober: prober,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "transcode"),
	}
}

// FormatFor resolves a named target format.
func (t *Transcoder) FormatFor(name string) (config.Format, error) {
	format, ok := t.cfg.FormatByName(name)
	if !ok {
		return config.Format{}, services.Wrap(services.ErrValidation, "transcode", "resolve format",
			fmt.Sprintf("unknown format %q", name), nil)
	}
	return format, nil
}

// ValidateDimensions requires positive even dimensions.
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return services.Wrap(services.ErrValidation, "transcode", "validate",
			fmt.Sprintf("dimensions must be positive, got %dx%d", width, height), nil)
	}
	if width%2 != 0 || height%2 != 0 {
		return services.Wrap(services.ErrValidation, "transcode", "validate",
			fmt.Sprintf("dimensions must be even, got %dx%d", width, height), nil)
	}
	return nil
}

// ForceStyle renders the libass override string for burned subtitles.
func ForceStyle(s config.Subtitles) string {
	parts := []string{}
	if s.FontName != "" {
		parts = append(parts, "FontName="+s.FontName)
	}
	if s.FontSize > 0 {
		parts = append(parts, "FontSize="+strconv.Itoa(s.FontSize))
	}
	if s.Outline > 0 {
		parts = append(parts, "Outline="+strconv.Itoa(s.Outline))
	}
	if s.MarginV > 0 {
		parts = append(parts, "MarginV="+strconv.Itoa(s.MarginV))
	}
	return strings.Join(parts, ",")
}

// Spec builds the encoder spec for req without running it.
func (t *Transcoder) Spec(ctx context.Context, req Request) (encoder.Spec, error) {
	if err := ValidateDimensions(req.Width, req.Height); err != nil {
		return encoder.Spec{}, err
	}
	if req.BurnSubtitles && strings.TrimSpace(req.SubtitlePath) == "" {
		return encoder.Spec{}, services.Wrap(services.ErrValidation, "transcode", "validate",
			"burn-in requested without a subtitle file", nil)
	}
	probe, err := t.prober.Probe(ctx, req.Source)
	if err != nil {
		return encoder.Spec{}, err
	}
	duration, err := probe.Duration(req.Source)
	if err != nil {
		return encoder.Spec{}, err
	}
	if !probe.HasVideo() {
		return encoder.Spec{}, services.Wrap(services.ErrValidation, "transcode", "validate",
			req.Source+" has no video stream", nil)
	}

	fps := req.FrameRate
	if fps <= 0 {
		fps = float64(t.cfg.Encoder.FrameRate)
	}
	var subs *filtergraph.SubtitleStyle
	if req.BurnSubtitles {
		subs = &filtergraph.SubtitleStyle{Path: req.SubtitlePath, ForceStyle: ForceStyle(t.cfg.Subtitles)}
	}
	chain := filtergraph.ScalePad(req.Width, req.Height, fps, subs)

	enc := t.cfg.Encoder
	out := []string{
		"-c:v", enc.VideoCodec,
		"-preset", enc.Preset,
		"-crf", strconv.Itoa(enc.CRF),
		"-pix_fmt", "yuv420p",
	}
	maps := []string{"0:v:0"}
	if probe.HasAudio() {
		maps = append(maps, "0:a:0")
		out = append(out, "-c:a", enc.AudioCodec, "-b:a", enc.AudioBitrate)
	}
	out = append(out, "-movflags", "+faststart")

	return encoder.Spec{
		Inputs:           []string{req.Source},
		VideoFilter:      &chain,
		Maps:             maps,
		OutputArgs:       out,
		Output:           req.Output,
		ExpectedDuration: duration,
		Timeout:          time.Duration(enc.TimeoutSeconds) * time.Second,
	}, nil
}

// Transcode renders req. Partial output is removed on failure.
func (t *Transcoder) Transcode(ctx context.Context, req Request, progress encoder.ProgressFunc) (encoder.ArtifactStats, error) {
	spec, err := t.Spec(ctx, req)
	if err != nil {
		return encoder.ArtifactStats{}, err
	}
	logger := logging.WithContext(ctx, t.logger)
	logger.Info("transcode started",
		logging.String(logging.FieldEventType, "transcode_start"),
		logging.String("source", req.Source),
		logging.String("target", fmt.Sprintf("%dx%d", req.Width, req.Height)),
		logging.Bool("burn_subtitles", req.BurnSubtitles),
	)
	stats, err := t.enc.Run(ctx, spec, progress)
	if err != nil {
		_ = fileutil.RemovePartial(req.Output)
		return encoder.ArtifactStats{}, err
	}
	if stats.Width == 0 && stats.Height == 0 {
		stats.Width, stats.Height = req.Width, req.Height
	}
	logger.Info("transcode completed",
		logging.String(logging.FieldEventType, "transcode_complete"),
		logging.String("output", stats.Path),
		logging.Int64("size_bytes", stats.SizeBytes),
	)
	return stats, nil
}
