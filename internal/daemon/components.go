package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"splicer/internal/compositor"
	"splicer/internal/config"
	"splicer/internal/editor"
	"splicer/internal/encoder"
	"splicer/internal/jobs"
	"splicer/internal/locks"
	"splicer/internal/logging"
	"splicer/internal/media/ffprobe"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/silence"
	"splicer/internal/transcode"
	"splicer/internal/transcribe"
	"splicer/internal/transfer"
	"splicer/internal/upload"
	"splicer/internal/workflow"
)

// Components is the dependency graph shared by splicerd and the CLI.
type Components struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *queue.Store
	Records   *records.SQLiteRepository
	Locks     *locks.Manager
	Prober    ffprobe.Prober
	Detector  *silence.Detector
	Editor    *editor.Service
	Providers *transcribe.Registry
	Uploads   *upload.Store
	Workflow  *workflow.Manager
}

// Build opens the stores and constructs every service. Handlers are
// registered on the workflow manager but nothing is started.
func Build(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("daemon: configuration is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	repo, err := records.OpenSQLite(cfg.Paths.DatabasePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open record store: %w", err)
	}

	lockManager := locks.NewManager(cfg.Paths.LockDir)
	prober := ffprobe.NewClient(cfg.Encoder.FFprobeBinary)
	enc := encoder.NewFFmpeg(cfg.Encoder.FFmpegBinary, prober, logger)
	detector := silence.NewDetector(cfg.Encoder.FFmpegBinary, prober, logger)
	composer := compositor.New(enc, prober, cfg.Encoder, logger)
	transcoder := transcode.New(enc, prober, cfg, logger)
	providers := transcribe.NewRegistryFromConfig(cfg)

	c := &Components{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Records:   repo,
		Locks:     lockManager,
		Prober:    prober,
		Detector:  detector,
		Editor:    editor.New(cfg, repo, store, composer, detector, prober, lockManager, logger),
		Providers: providers,
		Uploads:   upload.NewStore(cfg.Paths.StagingDir, logger, upload.WithMaxBytes(cfg.MaxUploadBytes())),
		Workflow:  workflow.NewManager(cfg, store, lockManager, logger),
	}

	openRemote := func(context.Context) (transfer.RemoteStore, error) {
		return transfer.NewStore(cfg.Transfer)
	}
	handlers := []struct {
		typ     queue.Type
		handler workflow.Handler
	}{
		{queue.TypeTranscode, jobs.NewTranscodeHandler(cfg, transcoder, repo, store, logger)},
		{queue.TypeTranscribe, jobs.NewTranscribeHandler(providers, repo, logger)},
		{queue.TypeTransfer, jobs.NewTransferHandler(transfer.NewWorker(openRemote, repo, logger))},
	}
	for _, h := range handlers {
		if err := c.Workflow.Register(h.typ, h.handler); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Close releases the stores.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Records != nil {
		errs = append(errs, c.Records.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
