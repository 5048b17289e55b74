// Package compositor renders the active segments of a timeline into a single
// new media file.
package compositor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"splicer/internal/config"
	"splicer/internal/encoder"
	"splicer/internal/fileutil"
	"splicer/internal/filtergraph"
	"splicer/internal/logging"
	"splicer/internal/media/ffprobe"
	"splicer/internal/services"
	"splicer/internal/timeline"
)

// Request describes one composition.
type Request struct {
	Source   string
	Segments []timeline.Segment
	Output   string
}

// Compositor trims and concatenates segments through an Encoder.
type Compositor struct {
	enc      encoder.Encoder
	prober   ffprobe.Prober
	settings config.Encoder
	logger   *slog.Logger
}

// New constructs a Compositor.
func New(enc encoder.Encoder, prober ffprobe.Prober, settings config.Encoder, logger *slog.Logger) *Compositor {
	return &Compositor{
		enc:      enc,
		prober:   prober,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "compositor"),
	}
}

// Plan is the encoder spec a composition resolves to, plus the values it is
// checked against afterwards.
type Plan struct {
	Spec          encoder.Spec
	Active        []timeline.Segment
	Expected      float64
	FrameDuration float64
	FastPath      bool
}

// Prepare validates the request against the probed source and builds the
// encoder spec without running it.
func (c *Compositor) Prepare(ctx context.Context, req Request) (Plan, error) {
	if err := timeline.Validate(req.Segments); err != nil {
		return Plan{}, err
	}
	active := timeline.Active(req.Segments)
	if len(active) == 0 {
		return Plan{}, services.Wrap(services.ErrNoActiveSegments, "compositor", "prepare", "every segment is deleted", nil)
	}

	probe, err := c.prober.Probe(ctx, req.Source)
	if err != nil {
		return Plan{}, err
	}
	sourceDuration, err := probe.Duration(req.Source)
	if err != nil {
		return Plan{}, err
	}
	if err := timeline.ValidateWithin(active, sourceDuration); err != nil {
		return Plan{}, err
	}

	fps := probe.FrameRate()
	if fps <= 0 {
		fps = float64(c.settings.FrameRate)
	}
	if fps <= 0 {
		fps = 30
	}
	frame := 1 / fps

	plan := Plan{
		Active:        active,
		Expected:      timeline.TotalDuration(active),
		FrameDuration: frame,
	}
	spec := encoder.Spec{
		Inputs:           []string{req.Source},
		Output:           req.Output,
		ExpectedDuration: plan.Expected,
		Timeout:          time.Duration(c.settings.TimeoutSeconds) * time.Second,
	}

	if len(active) == 1 && active[0].StartTime <= frame && active[0].EndTime >= sourceDuration-frame {
		plan.FastPath = true
		spec.Maps = []string{"0"}
		spec.OutputArgs = []string{"-c", "copy"}
		plan.Expected = sourceDuration
		spec.ExpectedDuration = sourceDuration
		plan.Spec = spec
		return plan, nil
	}

	streams := filtergraph.Streams{Video: probe.HasVideo(), Audio: probe.HasAudio()}
	graph, _, err := filtergraph.TrimConcat(active, streams)
	if err != nil {
		return Plan{}, err
	}
	spec.Graph = graph
	spec.OutputArgs = c.codecArgs(streams)
	plan.Spec = spec
	return plan, nil
}

func (c *Compositor) codecArgs(streams filtergraph.Streams) []string {
	var args []string
	if streams.Video {
		args = append(args,
			"-c:v", c.settings.VideoCodec,
			"-preset", c.settings.Preset,
			"-crf", strconv.Itoa(c.settings.CRF),
			"-pix_fmt", "yuv420p",
		)
	}
	if streams.Audio {
		args = append(args, "-c:a", c.settings.AudioCodec, "-b:a", c.settings.AudioBitrate)
	}
	return append(args, "-movflags", "+faststart")
}

// Compose renders the request. Partial output is removed on any failure.
func (c *Compositor) Compose(ctx context.Context, req Request, progress encoder.ProgressFunc) (encoder.ArtifactStats, error) {
	plan, err := c.Prepare(ctx, req)
	if err != nil {
		return encoder.ArtifactStats{}, err
	}
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("composition started",
		logging.String(logging.FieldEventType, "compose_start"),
		logging.String("source", req.Source),
		logging.Int("segments", len(plan.Active)),
		logging.Float64("expected_seconds", plan.Expected),
		logging.Bool("fast_path", plan.FastPath),
	)

	stats, err := c.enc.Run(ctx, plan.Spec, progress)
	if err != nil {
		_ = fileutil.RemovePartial(req.Output)
		return encoder.ArtifactStats{}, err
	}

	if err := c.checkDuration(logger, plan, stats); err != nil {
		_ = fileutil.RemovePartial(req.Output)
		return encoder.ArtifactStats{}, err
	}
	logger.Info("composition completed",
		logging.String(logging.FieldEventType, "compose_complete"),
		logging.String("output", stats.Path),
		logging.Float64("duration_seconds", stats.DurationSeconds),
	)
	return stats, nil
}

func (c *Compositor) checkDuration(logger *slog.Logger, plan Plan, stats encoder.ArtifactStats) error {
	if stats.DurationSeconds <= 0 {
		return nil
	}
	drift := math.Abs(stats.DurationSeconds - plan.Expected)
	switch {
	case drift <= plan.FrameDuration:
		return nil
	case drift <= 2*plan.FrameDuration:
		logging.WarnWithContext(logger, "composed duration drifted beyond one frame", "compose_drift",
			logging.Float64("expected_seconds", plan.Expected),
			logging.Float64("actual_seconds", stats.DurationSeconds),
			logging.String(logging.FieldErrorHint, "check source timestamps for variable frame rate"),
		)
		return nil
	default:
		return services.Wrap(services.ErrProcessing, "compositor", "verify duration",
			fmt.Sprintf("expected %.3fs, rendered %.3fs", plan.Expected, stats.DurationSeconds), nil)
	}
}
