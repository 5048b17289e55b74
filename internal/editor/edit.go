package editor

import (
	"context"
	"errors"

	"splicer/internal/compositor"
	"splicer/internal/encoder"
	"splicer/internal/logging"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/silence"
	"splicer/internal/timeline"
	"splicer/internal/transcript"
)

// Cut renders [start, end) of the source into a new artifact.
func (s *Service) Cut(ctx context.Context, artifactID string, start, end float64, progress encoder.ProgressFunc) (*records.Artifact, error) {
	src, err := s.source(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	segments := []timeline.Segment{timeline.NewSegment(start, end)}
	if err := validate(src, segments); err != nil {
		return nil, err
	}
	return s.render(ctx, src, segments, progress, func(t []transcript.Segment) (*transcript.Result, error) {
		return transcript.SyncRange(t, start, end)
	})
}

// Assemble concatenates the active segments, in start order, into a new
// artifact. Deleted segments are skipped.
func (s *Service) Assemble(ctx context.Context, artifactID string, segments []timeline.Segment, progress encoder.ProgressFunc) (*records.Artifact, error) {
	src, err := s.source(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if err := validate(src, segments); err != nil {
		return nil, err
	}
	return s.render(ctx, src, segments, progress, func(t []transcript.Segment) (*transcript.Result, error) {
		return transcript.SyncAssembly(t, segments)
	})
}

// RemoveSilence detects speech in the source and assembles only the speech.
// A zero Options uses the configured thresholds.
func (s *Service) RemoveSilence(ctx context.Context, artifactID string, opts silence.Options, progress encoder.ProgressFunc) (*records.Artifact, silence.Analysis, error) {
	src, err := s.source(ctx, artifactID)
	if err != nil {
		return nil, silence.Analysis{}, err
	}
	if opts == (silence.Options{}) {
		opts = silence.OptionsFromConfig(s.cfg.Silence)
	}
	analysis, err := s.detector.Detect(ctx, src.Path, opts)
	if err != nil {
		return nil, silence.Analysis{}, err
	}
	segments := silence.ToTimeline(analysis.Speech)
	if len(segments) == 0 {
		return nil, analysis, services.Wrap(services.ErrNoActiveSegments, "editor", "remove silence", "no speech detected", nil)
	}
	artifact, err := s.Assemble(ctx, src.ID, segments, progress)
	return artifact, analysis, err
}

func validate(src *records.Artifact, segments []timeline.Segment) error {
	if err := timeline.Validate(segments); err != nil {
		return err
	}
	if len(timeline.Active(segments)) == 0 {
		return services.Wrap(services.ErrNoActiveSegments, "editor", "validate", "every segment is deleted", nil)
	}
	if src.DurationSeconds > 0 {
		return timeline.ValidateWithin(segments, src.DurationSeconds)
	}
	return nil
}

type syncFunc func([]transcript.Segment) (*transcript.Result, error)

func (s *Service) render(ctx context.Context, src *records.Artifact, segments []timeline.Segment, progress encoder.ProgressFunc, sync syncFunc) (*records.Artifact, error) {
	ctx = services.WithArtifactID(ctx, src.ID)
	logger := logging.WithContext(ctx, s.logger)
	video := src.Width > 0 && src.Height > 0
	out := &records.Artifact{
		ID:               records.NewID(),
		EditID:           src.EditID,
		SourceArtifactID: src.ID,
		MimeType:         outputMime(video),
		Status:           records.StatusCompleted,
		Progress:         100,
	}
	out.Path = s.outputPath(out.ID, video)

	var stats encoder.ArtifactStats
	err := s.lockSource(ctx, src.ID, func() error {
		var err error
		stats, err = s.composer.Compose(ctx, compositor.Request{Source: src.Path, Segments: segments, Output: out.Path}, progress)
		return err
	})
	if err != nil {
		return nil, err
	}
	out.Path = stats.Path
	out.FileSizeBytes = stats.SizeBytes
	out.DurationSeconds = stats.DurationSeconds
	out.Width, out.Height = stats.Width, stats.Height
	out.Format = stats.Format

	if src.HasTranscript() {
		result, err := sync(src.Transcript)
		if err == nil && result != nil && out.DurationSeconds > 0 {
			err = transcript.Validate(result.Segments, out.DurationSeconds)
		}
		if err != nil {
			logging.WarnWithContext(logger, "transcript could not be remapped; new artifact has no transcript", "transcript_sync_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "subtitles unavailable until the artifact is transcribed"),
			)
		} else if result != nil {
			out.Transcript = result.Segments
			out.TranscriptText = result.Text
			out.TranscriptStatus = records.StatusCompleted
		}
	}

	if err := s.repo.CreateArtifact(ctx, out); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "editor", "record edit", out.ID, err)
	}
	if err := s.advanceEdit(ctx, src.EditID, out.ID, segments); err != nil {
		logging.WarnWithContext(logger, "edit lineage not updated", "edit_lineage_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "edit still points at the previous artifact"),
		)
	}
	logger.Info("edit rendered",
		logging.String(logging.FieldEventType, "edit_rendered"),
		logging.String("output_artifact_id", out.ID),
		logging.Float64("duration_seconds", out.DurationSeconds),
		logging.Bool("transcript", out.HasTranscript()),
	)
	return out, nil
}

func (s *Service) advanceEdit(ctx context.Context, editID, artifactID string, segments []timeline.Segment) error {
	if editID == "" {
		return nil
	}
	edit, err := s.repo.GetEdit(ctx, editID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return nil
		}
		return err
	}
	edit.CurrentArtifactID = artifactID
	edit.Segments = segments
	return s.repo.UpdateEdit(ctx, edit)
}
