package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"splicer/internal/logging"
	"splicer/internal/queue"
	"splicer/internal/records"
	"splicer/internal/services"
	"splicer/internal/workflow"
)

// Enqueuer is the subset of the queue store handlers use for follow-ups.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ queue.Type, payload any, opts ...queue.EnqueueOption) (*queue.Job, error)
	List(ctx context.Context, filter queue.Filter) ([]*queue.Job, error)
}

const recordProgressStep = 5.0

// trackProgress forwards percentages to the job and mirrors them onto the
// record in coarser steps.
func trackProgress(ctx context.Context, repo records.Repository, logger *slog.Logger, artifactID string, job workflow.ProgressFunc) workflow.ProgressFunc {
	var mu sync.Mutex
	last := 0.0
	return func(percent float64) {
		if job != nil {
			job(percent)
		}
		mu.Lock()
		defer mu.Unlock()
		if percent < 100 && percent-last < recordProgressStep {
			return
		}
		last = percent
		if _, err := records.Mutate(ctx, repo, artifactID, func(a *records.Artifact) {
			a.Progress = queue.Percent(percent)
		}); err != nil && ctx.Err() == nil {
			logger.Debug("record progress update failed", logging.Error(err))
		}
	}
}

// failureStatus maps a recorded queue outcome onto the record status: a
// scheduled retry returns the record to PENDING.
func failureStatus(outcome queue.Outcome) records.Status {
	if outcome.Terminal {
		return records.StatusFailed
	}
	return records.StatusPending
}

func decode(job *queue.Job, component string, v any) error {
	if err := job.Decode(v); err != nil {
		return services.Wrap(services.ErrValidation, component, "decode payload", "", err)
	}
	return nil
}

func loadArtifact(ctx context.Context, repo records.Repository, component, id string) (*records.Artifact, error) {
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, component, "load artifact", "artifact id is required", nil)
	}
	artifact, err := repo.GetArtifact(ctx, id)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, component, "load artifact", id, err)
		}
		return nil, services.Wrap(services.ErrPersistence, component, "load artifact", id, err)
	}
	return artifact, nil
}
