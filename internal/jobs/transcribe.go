package jobs

import (
	"context"
	"log/slog"

	"splicer/internal/locks"
	"splicer/internal/logging"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/transcribe"
	"splicer/internal/transcript"
	"splicer/internal/workflow"
)

// TranscribeResult is stored as the transcribe job result.
type TranscribeResult struct {
	ArtifactID string `json:"artifactId"`
	Provider   string `json:"provider"`
	Segments   int    `json:"segments"`
}

// TranscribeHandler attaches a timed transcript to an artifact.
type TranscribeHandler struct {
	providers *transcribe.Registry
	repo      records.Repository
	logger    *slog.Logger
}

// NewTranscribeHandler constructs a TranscribeHandler.
func NewTranscribeHandler(providers *transcribe.Registry, repo records.Repository, logger *slog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		providers: providers,
		repo:      repo,
		logger:    logging.NewComponentLogger(logger, "transcribe-handler"),
	}
}

func (h *TranscribeHandler) LockKeys(job *queue.Job) ([]string, error) {
	var payload queue.TranscribePayload
	if err := decode(job, "transcribe", &payload); err != nil {
		return nil, err
	}
	return []string{locks.ArtifactKey(payload.ArtifactID)}, nil
}

func (h *TranscribeHandler) Handle(ctx context.Context, job *queue.Job, progress workflow.ProgressFunc) (any, error) {
	var payload queue.TranscribePayload
	if err := decode(job, "transcribe", &payload); err != nil {
		return nil, err
	}
	provider, err := h.providers.Get(payload.Provider)
	if err != nil {
		return nil, err
	}
	artifact, err := loadArtifact(ctx, h.repo, "transcribe", payload.ArtifactID)
	if err != nil {
		return nil, err
	}
	audio := payload.AudioPath
	if audio == "" {
		audio = artifact.Path
	}
	if _, err := records.Mutate(ctx, h.repo, artifact.ID, func(a *records.Artifact) {
		a.TranscriptStatus = records.StatusProcessing
	}); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "transcribe", "mark processing", artifact.ID, err)
	}
	progress(5)

	segs, err := provider.Transcribe(ctx, audio)
	if err != nil {
		return nil, err
	}
	progress(90)

	// Providers occasionally overrun the media end by a frame; clamp to the
	// artifact so the stored transcript stays within its owner.
	if artifact.DurationSeconds > 0 && segs != nil {
		clamped, err := transcript.SyncRange(segs, 0, artifact.DurationSeconds)
		if err != nil {
			return nil, err
		}
		segs = clamped.Segments
	}
	if err := transcript.Validate(segs, artifact.DurationSeconds); err != nil {
		return nil, err
	}

	if _, err := records.Mutate(ctx, h.repo, artifact.ID, func(a *records.Artifact) {
		a.Transcript = segs
		a.TranscriptText = transcript.JoinText(segs)
		a.TranscriptStatus = records.StatusCompleted
		a.Error = ""
	}); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "transcribe", "store transcript", artifact.ID, err)
	}
	logging.WithContext(ctx, h.logger).Info("transcript stored",
		logging.String(logging.FieldEventType, "transcribe_complete"),
		logging.String("provider", provider.Name()),
		logging.Int("segments", len(segs)),
	)
	return TranscribeResult{ArtifactID: artifact.ID, Provider: provider.Name(), Segments: len(segs)}, nil
}

func (h *TranscribeHandler) OnFailure(ctx context.Context, job *queue.Job, err error, outcome queue.Outcome) {
	var payload queue.TranscribePayload
	if decode(job, "transcribe", &payload) != nil || payload.ArtifactID == "" {
		return
	}
	if _, mErr := records.Mutate(ctx, h.repo, payload.ArtifactID, func(a *records.Artifact) {
		a.TranscriptStatus = failureStatus(outcome)
		a.Error = services.Details(err)
	}); mErr != nil {
		h.logger.Warn("failed to record transcription failure",
			logging.String(logging.FieldArtifactID, payload.ArtifactID),
			logging.Error(mErr),
		)
	}
}

func (h *TranscribeHandler) HealthCheck(context.Context) workflow.Health {
	if _, err := h.providers.Get(""); err != nil {
		return workflow.Unhealthy("transcribe", services.Details(err))
	}
	return workflow.Healthy("transcribe")
}
