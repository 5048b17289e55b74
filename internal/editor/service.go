package editor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"splicer/internal/compositor"
	"splicer/internal/config"
	"splicer/internal/encoder"
	"splicer/internal/locks"
	"splicer/internal/logging"
	"splicer/internal/media/ffprobe"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/silence"
)

// Composer renders active timeline segments into one file.
type Composer interface {
	Compose(ctx context.Context, req compositor.Request, progress encoder.ProgressFunc) (encoder.ArtifactStats, error)
}

// SilenceDetector classifies a file into silence and speech.
type SilenceDetector interface {
	Detect(ctx context.Context, path string, opts silence.Options) (silence.Analysis, error)
}

// Enqueuer queues follow-up jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ queue.Type, payload any, opts ...queue.EnqueueOption) (*queue.Job, error)
}

// Service coordinates imports, edits and exports.
type Service struct {
	cfg      *config.Config
	repo     records.Repository
	queue    Enqueuer
	composer Composer
	detector SilenceDetector
	prober   ffprobe.Prober
	locks    *locks.Manager
	logger   *slog.Logger
}

// New constructs a Service. lockManager may be nil in single-process tools
// that never run edits concurrently.
func New(cfg *config.Config, repo records.Repository, q Enqueuer, composer Composer, detector SilenceDetector, prober ffprobe.Prober, lockManager *locks.Manager, logger *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		repo:     repo,
		queue:    q,
		composer: composer,
		detector: detector,
		prober:   prober,
		locks:    lockManager,
		logger:   logging.NewComponentLogger(logger, "editor"),
	}
}

func (s *Service) source(ctx context.Context, id string) (*records.Artifact, error) {
	if strings.TrimSpace(id) == "" {
		return nil, services.Wrap(services.ErrValidation, "editor", "load source", "artifact id is required", nil)
	}
	artifact, err := s.repo.GetArtifact(ctx, id)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, "editor", "load source", id, err)
		}
		return nil, services.Wrap(services.ErrPersistence, "editor", "load source", id, err)
	}
	if artifact.Status != records.StatusCompleted {
		return nil, services.Wrap(services.ErrValidation, "editor", "load source",
			"artifact "+id+" is "+string(artifact.Status), nil)
	}
	return artifact, nil
}

// lockSource holds the source artifact's lock while fn runs.
func (s *Service) lockSource(ctx context.Context, id string, fn func() error) error {
	if s.locks == nil {
		return fn()
	}
	lock, err := s.locks.Acquire(ctx, locks.ArtifactKey(id))
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}

func (s *Service) outputPath(id string, video bool) string {
	ext := ".m4a"
	if video {
		ext = ".mp4"
	}
	return filepath.Join(s.cfg.Paths.WorkDir, "edits", id+ext)
}

func outputMime(video bool) string {
	if video {
		return "video/mp4"
	}
	return "audio/mp4"
}
