package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"splicer/internal/logging"
	"splicer/internal/metrics"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
)

// StoreFactory opens a RemoteStore for one transfer. SFTP connections are
// per transfer so a dropped session never poisons later jobs.
type StoreFactory func(ctx context.Context) (RemoteStore, error)

// Result is stored as the transfer job result.
type Result struct {
	URL     string `json:"url"`
	Bytes   int64  `json:"bytes"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Worker performs idempotent artifact transfers.
type Worker struct {
	open   StoreFactory
	repo   records.Repository
	logger *slog.Logger
}

// NewWorker constructs a Worker.
func NewWorker(open StoreFactory, repo records.Repository, logger *slog.Logger) *Worker {
	return &Worker{open: open, repo: repo, logger: logging.NewComponentLogger(logger, "transfer")}
}

// Transfer uploads payload.LocalPath as payload.Filename and records the
// durable URL on the artifact. progress receives percentages.
func (w *Worker) Transfer(ctx context.Context, payload queue.TransferPayload, progress func(float64)) (Result, error) {
	if payload.ArtifactID == "" {
		return Result{}, services.Wrap(services.ErrValidation, "transfer", "decode", "artifact id is required", nil)
	}
	if err := ValidateName(payload.Filename); err != nil {
		return Result{}, err
	}
	artifact, err := w.repo.GetArtifact(ctx, payload.ArtifactID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return Result{}, services.Wrap(services.ErrNotFound, "transfer", "load artifact", payload.ArtifactID, err)
		}
		return Result{}, err
	}
	logger := logging.WithContext(ctx, w.logger)

	if artifact.TransferStatus == records.StatusCompleted && artifact.RemoteURL != "" {
		logger.Info("transfer already completed",
			logging.String(logging.FieldEventType, "transfer_skipped"),
			logging.String("remote_url", artifact.RemoteURL),
		)
		return Result{URL: artifact.RemoteURL, Skipped: true}, nil
	}

	result, err := w.upload(ctx, logger, artifact, payload, progress)
	if err != nil {
		w.markFailed(ctx, logger, artifact.ID, err)
		return Result{}, err
	}

	if _, err := records.Mutate(ctx, w.repo, artifact.ID, func(a *records.Artifact) {
		a.RemoteURL = result.URL
		a.TransferStatus = records.StatusCompleted
		a.Error = ""
	}); err != nil {
		return Result{}, services.Wrap(services.ErrPersistence, "transfer", "record url", artifact.ID, err)
	}
	if !result.Skipped {
		metrics.TransferBytesTotal.Add(float64(result.Bytes))
	}
	w.removeLocal(logger, payload.LocalPath)
	logger.Info("transfer completed",
		logging.String(logging.FieldEventType, "transfer_complete"),
		logging.String("remote_url", result.URL),
		logging.Int64("bytes", result.Bytes),
		logging.Bool("skipped_upload", result.Skipped),
	)
	return result, nil
}

func (w *Worker) upload(ctx context.Context, logger *slog.Logger, artifact *records.Artifact, payload queue.TransferPayload, progress func(float64)) (Result, error) {
	if _, err := records.Mutate(ctx, w.repo, artifact.ID, func(a *records.Artifact) {
		a.TransferStatus = records.StatusProcessing
	}); err != nil {
		return Result{}, services.Wrap(services.ErrPersistence, "transfer", "mark processing", artifact.ID, err)
	}

	store, err := w.open(ctx)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransfer, "transfer", "connect", "", err)
	}
	defer store.Close()

	info, statErr := os.Stat(payload.LocalPath)
	remoteSize, remoteExists, err := store.Stat(ctx, payload.Filename)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransfer, "transfer", "stat remote", payload.Filename, err)
	}

	if statErr != nil {
		// A previous attempt may have uploaded and deleted the local copy
		// before the record update landed.
		if errors.Is(statErr, fs.ErrNotExist) && remoteExists && remoteSize == artifact.FileSizeBytes && remoteSize > 0 {
			return Result{URL: store.URL(payload.Filename), Bytes: remoteSize, Skipped: true}, nil
		}
		return Result{}, services.Wrap(services.ErrTransfer, "transfer", "stat local", payload.LocalPath, statErr)
	}
	size := info.Size()
	if remoteExists && remoteSize == size {
		logger.Info("remote copy already present", logging.String("filename", payload.Filename))
		return Result{URL: store.URL(payload.Filename), Bytes: size, Skipped: true}, nil
	}

	if err := store.MkdirAll(ctx); err != nil {
		return Result{}, services.Wrap(services.ErrTransfer, "transfer", "ensure remote dir", "", err)
	}
	f, err := os.Open(payload.LocalPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransfer, "transfer", "open local", payload.LocalPath, err)
	}
	defer f.Close()

	report := func(written int64) {
		if progress != nil && size > 0 {
			progress(float64(written) / float64(size) * 100)
		}
	}
	written, err := store.Put(ctx, payload.Filename, f, report)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, services.Wrap(services.ErrCancelled, "transfer", "upload", payload.Filename, err)
		}
		return Result{}, services.Wrap(services.ErrTransfer, "transfer", "upload", payload.Filename, err)
	}

	confirmed, exists, err := store.Stat(ctx, payload.Filename)
	if err != nil || !exists || confirmed != size || written != size {
		return Result{}, services.Wrap(services.ErrTransfer, "transfer", "verify",
			fmt.Sprintf("remote size %d, local size %d", confirmed, size), err)
	}
	return Result{URL: store.URL(payload.Filename), Bytes: size}, nil
}

func (w *Worker) markFailed(ctx context.Context, logger *slog.Logger, artifactID string, cause error) {
	// The job context may already be cancelled; the failure still belongs on the record.
	recordCtx := context.WithoutCancel(ctx)
	if _, err := records.Mutate(recordCtx, w.repo, artifactID, func(a *records.Artifact) {
		a.TransferStatus = records.StatusFailed
		a.Error = services.Details(cause)
	}); err != nil {
		logging.WarnWithContext(logger, "failed to record transfer failure", "transfer_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "artifact transfer status may be stale"),
		)
	}
}

func (w *Worker) removeLocal(logger *slog.Logger, localPath string) {
	if localPath == "" {
		return
	}
	if err := os.Remove(localPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to remove local copy after transfer", "transfer_cleanup_failed",
			logging.String("path", localPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file manually"),
		)
	}
}
