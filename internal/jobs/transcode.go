package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"splicer/internal/config"
	"splicer/internal/deps"
	"splicer/internal/encoder"
	"splicer/internal/fileutil"
	"splicer/internal/locks"
	"splicer/internal/logging"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/transcode"
	"splicer/internal/transcript"
	"splicer/internal/workflow"
)

// Transcoder renders one transcode request.
type Transcoder interface {
	Transcode(ctx context.Context, req transcode.Request, progress encoder.ProgressFunc) (encoder.ArtifactStats, error)
}

// TranscodeResult is stored as the transcode job result.
type TranscodeResult struct {
	ExportID      string `json:"exportId"`
	Path          string `json:"path"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	TransferJobID int64  `json:"transferJobId,omitempty"`
}

// TranscodeHandler renders an export artifact and queues its transfer.
type TranscodeHandler struct {
	cfg        *config.Config
	transcoder Transcoder
	repo       records.Repository
	queue      Enqueuer
	logger     *slog.Logger
}

// NewTranscodeHandler constructs a TranscodeHandler.
func NewTranscodeHandler(cfg *config.Config, transcoder Transcoder, repo records.Repository, q Enqueuer, logger *slog.Logger) *TranscodeHandler {
	return &TranscodeHandler{
		cfg:        cfg,
		transcoder: transcoder,
		repo:       repo,
		queue:      q,
		logger:     logging.NewComponentLogger(logger, "transcode-handler"),
	}
}

// ExportPath is where the render for exportID is written.
func ExportPath(workDir, exportID string) string {
	return filepath.Join(workDir, "exports", exportID+".mp4")
}

func (h *TranscodeHandler) LockKeys(job *queue.Job) ([]string, error) {
	var payload queue.TranscodePayload
	if err := decode(job, "transcode", &payload); err != nil {
		return nil, err
	}
	return []string{locks.ArtifactKey(payload.SourceArtifactID), locks.ArtifactKey(payload.ExportID)}, nil
}

func (h *TranscodeHandler) Handle(ctx context.Context, job *queue.Job, progress workflow.ProgressFunc) (any, error) {
	var payload queue.TranscodePayload
	if err := decode(job, "transcode", &payload); err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, h.logger)

	export, err := loadArtifact(ctx, h.repo, "transcode", payload.ExportID)
	if err != nil {
		return nil, err
	}
	if export.Status == records.StatusCompleted && (fileutil.Exists(export.Path) || export.TransferStatus == records.StatusCompleted) {
		logger.Info("export already rendered",
			logging.String(logging.FieldEventType, "transcode_skipped"),
			logging.String("output", export.Path),
		)
		transferID, err := h.ensureTransfer(ctx, export)
		if err != nil {
			return nil, err
		}
		return TranscodeResult{ExportID: export.ID, Path: export.Path, FileSizeBytes: export.FileSizeBytes, TransferJobID: transferID}, nil
	}

	source, err := loadArtifact(ctx, h.repo, "transcode", payload.SourceArtifactID)
	if err != nil {
		return nil, err
	}
	if _, err := records.Mutate(ctx, h.repo, export.ID, func(a *records.Artifact) {
		a.Status = records.StatusProcessing
		a.Progress = 0
		a.Error = ""
	}); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "transcode", "mark processing", export.ID, err)
	}

	output := ExportPath(h.cfg.Paths.WorkDir, export.ID)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, services.Wrap(services.ErrProcessing, "transcode", "prepare output", filepath.Dir(output), err)
	}
	req := transcode.Request{
		Source: source.Path,
		Output: output,
		Width:  payload.Width,
		Height: payload.Height,
	}
	if payload.BurnSubtitles {
		if source.HasTranscript() {
			subtitlePath := filepath.Join(filepath.Dir(output), export.ID+".srt")
			if err := transcript.WriteSRTFile(ctx, subtitlePath, source.Transcript); err != nil {
				return nil, err
			}
			defer os.Remove(subtitlePath)
			req.SubtitlePath = subtitlePath
			req.BurnSubtitles = true
		} else {
			logging.WarnWithContext(logger, "source has no transcript; rendering without subtitles", "transcode_no_subtitles",
				logging.String(logging.FieldImpact, "export will not carry burned-in subtitles"),
				logging.String(logging.FieldErrorHint, "transcribe the source before exporting"),
			)
		}
	}

	track := trackProgress(ctx, h.repo, logger, export.ID, progress)
	stats, err := h.transcoder.Transcode(ctx, req, encoder.ProgressFunc(track))
	if err != nil {
		return nil, err
	}

	updated, err := records.Mutate(ctx, h.repo, export.ID, func(a *records.Artifact) {
		a.Path = stats.Path
		a.MimeType = "video/mp4"
		a.FileSizeBytes = stats.SizeBytes
		a.DurationSeconds = stats.DurationSeconds
		a.Width, a.Height = stats.Width, stats.Height
		a.Format = payload.TargetFormat
		a.Status = records.StatusCompleted
		a.TransferStatus = records.StatusPending
		a.Progress = 100
		a.Error = ""
		a.Transcript = source.Transcript
		a.TranscriptText = source.TranscriptText
	})
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "transcode", "record output", export.ID, err)
	}

	transferID, err := h.ensureTransfer(ctx, updated)
	if err != nil {
		return nil, err
	}
	return TranscodeResult{ExportID: updated.ID, Path: updated.Path, FileSizeBytes: updated.FileSizeBytes, TransferJobID: transferID}, nil
}

// ensureTransfer enqueues the transfer for a rendered export unless one is
// already queued, running or done.
func (h *TranscodeHandler) ensureTransfer(ctx context.Context, export *records.Artifact) (int64, error) {
	existing, err := h.queue.List(ctx, queue.Filter{Types: []queue.Type{queue.TypeTransfer}, ArtifactID: export.ID})
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "transcode", "list transfers", export.ID, err)
	}
	for _, job := range existing {
		if job.State != queue.StateFailed {
			return job.ID, nil
		}
	}
	job, err := h.queue.Enqueue(ctx, queue.TypeTransfer, queue.TransferPayload{
		ArtifactID: export.ID,
		LocalPath:  export.Path,
		Filename:   RemoteName(export),
	}, queue.WithArtifact(export.ID))
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "transcode", "enqueue transfer", export.ID, err)
	}
	return job.ID, nil
}

// RemoteName is the remote filename for an export.
func RemoteName(export *records.Artifact) string {
	if export.Format == "" {
		return export.ID + ".mp4"
	}
	return fmt.Sprintf("%s-%s.mp4", export.ID, export.Format)
}

func (h *TranscodeHandler) OnFailure(ctx context.Context, job *queue.Job, err error, outcome queue.Outcome) {
	var payload queue.TranscodePayload
	if decode(job, "transcode", &payload) != nil || payload.ExportID == "" {
		return
	}
	if _, mErr := records.Mutate(ctx, h.repo, payload.ExportID, func(a *records.Artifact) {
		a.Status = failureStatus(outcome)
		a.Error = services.Details(err)
	}); mErr != nil {
		h.logger.Warn("failed to record transcode failure on export",
			logging.String("export_id", payload.ExportID),
			logging.Error(mErr),
		)
	}
}

func (h *TranscodeHandler) HealthCheck(context.Context) workflow.Health {
	if missing := deps.MissingRequired(deps.CheckBinaries([]deps.Requirement{
		{Name: "FFmpeg", Command: h.cfg.Encoder.FFmpegBinary},
		{Name: "FFprobe", Command: h.cfg.Encoder.FFprobeBinary},
	})); len(missing) > 0 {
		return workflow.Unhealthy("transcode", fmt.Sprintf("missing %v", missing))
	}
	return workflow.Healthy("transcode")
}
