package editor

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"splicer/internal/logging"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/timeline"
)

// Import probes a stored upload and records it as the original artifact of a
// new edit whose timeline spans the whole file.
func (s *Service) Import(ctx context.Context, path, mimeType string) (*records.Edit, *records.Artifact, error) {
	path = strings.TrimSpace(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "editor", "import", "source not readable", err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, services.Wrap(services.ErrValidation, "editor", "import", path+" is not a regular file", nil)
	}
	probe, err := s.prober.Probe(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	duration, err := probe.Duration(path)
	if err != nil {
		return nil, nil, err
	}
	if !probe.HasAudio() && !probe.HasVideo() {
		return nil, nil, services.Wrap(services.ErrValidation, "editor", "import", path+" has no audio or video streams", nil)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	width, height := probe.VideoDimensions()

	edit := &records.Edit{ID: records.NewID()}
	artifact := &records.Artifact{
		EditID:          edit.ID,
		Path:            path,
		MimeType:        mimeType,
		FileSizeBytes:   info.Size(),
		DurationSeconds: duration,
		Width:           width,
		Height:          height,
		Format:          probe.FormatName(),
		Status:          records.StatusCompleted,
	}
	if err := s.repo.CreateArtifact(ctx, artifact); err != nil {
		return nil, nil, services.Wrap(services.ErrPersistence, "editor", "import", "create artifact", err)
	}
	edit.OriginalArtifactID = artifact.ID
	edit.CurrentArtifactID = artifact.ID
	edit.Segments = []timeline.Segment{timeline.NewSegment(0, duration)}
	if err := s.repo.CreateEdit(ctx, edit); err != nil {
		return nil, nil, services.Wrap(services.ErrPersistence, "editor", "import", "create edit", err)
	}

	logging.WithContext(services.WithArtifactID(ctx, artifact.ID), s.logger).Info("media imported",
		logging.String(logging.FieldEventType, "media_imported"),
		logging.String("edit_id", edit.ID),
		logging.Float64("duration_seconds", duration),
		logging.String("mime_type", mimeType),
	)
	return edit, artifact, nil
}
