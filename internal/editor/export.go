package editor

import (
	"context"
	"fmt"
	"strings"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/transcode"
)

// Export is one queued render target.
type Export struct {
	Artifact *records.Artifact `json:"artifact"`
	JobID    int64             `json:"jobId"`
}

// Export creates a pending artifact per named format and queues its
// transcode. Unknown formats fail before anything is created.
func (s *Service) Export(ctx context.Context, artifactID string, formats []string, burnSubtitles bool) ([]Export, error) {
	src, err := s.source(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, services.Wrap(services.ErrValidation, "editor", "export", "at least one format is required", nil)
	}
	targets := make([]config.Format, 0, len(formats))
	seen := make(map[string]bool, len(formats))
	for _, name := range formats {
		format, ok := s.cfg.FormatByName(name)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "editor", "export", fmt.Sprintf("unknown format %q", name), nil)
		}
		if err := transcode.ValidateDimensions(format.Width, format.Height); err != nil {
			return nil, err
		}
		key := strings.ToLower(format.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, format)
	}

	logger := logging.WithContext(services.WithArtifactID(ctx, src.ID), s.logger)
	exports := make([]Export, 0, len(targets))
	for _, format := range targets {
		artifact := &records.Artifact{
			EditID:           src.EditID,
			SourceArtifactID: src.ID,
			MimeType:         "video/mp4",
			Width:            format.Width,
			Height:           format.Height,
			Format:           format.Name,
			Status:           records.StatusPending,
		}
		if err := s.repo.CreateArtifact(ctx, artifact); err != nil {
			return exports, services.Wrap(services.ErrPersistence, "editor", "export", "create export artifact", err)
		}
		job, err := s.queue.Enqueue(ctx, queue.TypeTranscode, queue.TranscodePayload{
			ExportID:         artifact.ID,
			SourceArtifactID: src.ID,
			TargetFormat:     format.Name,
			Width:            format.Width,
			Height:           format.Height,
			BurnSubtitles:    burnSubtitles,
		}, queue.WithArtifact(artifact.ID))
		if err != nil {
			return exports, services.Wrap(services.ErrPersistence, "editor", "export", "enqueue transcode", err)
		}
		logger.Info("export queued",
			logging.String(logging.FieldEventType, "export_queued"),
			logging.String("export_id", artifact.ID),
			logging.String("format", format.Name),
			logging.Int64("job_id", job.ID),
		)
		exports = append(exports, Export{Artifact: artifact, JobID: job.ID})
	}
	return exports, nil
}

// Transcribe queues transcription of an artifact's audio.
func (s *Service) Transcribe(ctx context.Context, artifactID, provider string) (*queue.Job, error) {
	src, err := s.source(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	// Mark pending before the job exists, under the lock the worker takes.
	var job *queue.Job
	err = s.lockSource(ctx, src.ID, func() error {
		var previous records.Status
		if _, err := records.Mutate(ctx, s.repo, src.ID, func(a *records.Artifact) {
			previous = a.TranscriptStatus
			a.TranscriptStatus = records.StatusPending
		}); err != nil {
			return services.Wrap(services.ErrPersistence, "editor", "transcribe", "mark pending", err)
		}
		queued, err := s.queue.Enqueue(ctx, queue.TypeTranscribe, queue.TranscribePayload{
			ArtifactID: src.ID,
			AudioPath:  src.Path,
			Provider:   provider,
		}, queue.WithArtifact(src.ID))
		if err != nil {
			if _, rerr := records.Mutate(context.WithoutCancel(ctx), s.repo, src.ID, func(a *records.Artifact) {
				a.TranscriptStatus = previous
			}); rerr != nil {
				s.logger.Warn("failed to restore transcript status",
					logging.String(logging.FieldArtifactID, src.ID),
					logging.Error(rerr),
				)
			}
			return services.Wrap(services.ErrPersistence, "editor", "transcribe", "enqueue", err)
		}
		job = queued
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
