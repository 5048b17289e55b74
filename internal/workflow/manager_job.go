package workflow

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"splicer/internal/logging"
	"splicer/internal/metrics"
	"splicer/internal/queue"
	"splicer/internal/services"
)

var (
	errCancelRequested = errors.New("cancel requested by operator")
	errJobLost         = errors.New("job no longer owned by this worker")
)

func (m *Manager) processJob(ctx context.Context, lane *laneState, worker string, job *queue.Job) {
	requestID := uuid.NewString()
	jobCtx := withJobContext(ctx, worker, job, requestID)
	logger := logging.WithContext(jobCtx, lane.logger)

	typeLabel := string(job.Type)
	start := time.Now()
	lane.active.Add(1)
	metrics.JobsActive.WithLabelValues(typeLabel).Inc()
	metrics.JobsStartedTotal.WithLabelValues(typeLabel).Inc()
	defer func() {
		lane.active.Add(-1)
		metrics.JobsActive.WithLabelValues(typeLabel).Dec()
		metrics.JobDuration.WithLabelValues(typeLabel).Observe(time.Since(start).Seconds())
	}()

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.Int("attempt", job.Attempts),
		logging.Int("max_attempts", job.MaxAttempts),
	)

	// Heartbeat from claim time so a job waiting on an artifact lock stays claimed.
	workCtx, cancelCause := context.WithCancelCause(jobCtx)
	defer cancelCause(nil)
	hbCtx, hbCancel := context.WithCancel(workCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID,
		func() { cancelCause(errCancelRequested) },
		func() { cancelCause(errJobLost) },
	)
	stopHeartbeat := func() {
		hbCancel()
		hbWG.Wait()
	}

	release, err := m.acquireLocks(workCtx, lane, job)
	if err != nil {
		stopHeartbeat()
		switch {
		case errors.Is(context.Cause(workCtx), errCancelRequested):
			m.cancelJob(jobCtx, lane, logger, job, start)
		case errors.Is(context.Cause(workCtx), errJobLost):
			m.abandonJob(logger, job)
		case ctx.Err() != nil:
			m.releaseJob(jobCtx, logger, job)
		default:
			m.finishWithError(jobCtx, lane, logger, job, err, start)
		}
		return
	}
	defer release()

	runCtx := workCtx
	if lane.timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(workCtx, lane.timeout)
		defer cancelTimeout()
	}

	progress := m.progressRecorder(jobCtx, logger, job.ID)
	result, execErr := lane.handler.Handle(runCtx, job, progress)

	stopHeartbeat()

	switch {
	case execErr == nil && runCtx.Err() == nil:
		m.completeJob(jobCtx, logger, job, result, start)
	case errors.Is(context.Cause(runCtx), errCancelRequested):
		m.cancelJob(jobCtx, lane, logger, job, start)
	case errors.Is(context.Cause(runCtx), errJobLost):
		m.abandonJob(logger, job)
	case ctx.Err() != nil:
		m.releaseJob(jobCtx, logger, job)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		timeoutErr := services.Wrap(services.ErrTimeout, "workflow", string(job.Type),
			"job exceeded "+lane.timeout.String(), execErr)
		m.finishWithError(jobCtx, lane, logger, job, timeoutErr, start)
	default:
		if execErr == nil {
			execErr = runCtx.Err()
		}
		m.finishWithError(jobCtx, lane, logger, job, execErr, start)
	}
}

func (m *Manager) acquireLocks(ctx context.Context, lane *laneState, job *queue.Job) (func(), error) {
	keyer, ok := lane.handler.(LockKeyer)
	if !ok {
		return func() {}, nil
	}
	keys, err := keyer.LockKeys(job)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return func() {}, nil
	}
	if m.locks == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "lock", "lock manager not configured", nil)
	}
	return m.locks.AcquireAll(ctx, keys...)
}

// progressRecorder persists handler progress in whole percents, writing only
// when the rounded value changes.
func (m *Manager) progressRecorder(ctx context.Context, logger *slog.Logger, jobID int64) ProgressFunc {
	var mu sync.Mutex
	last := -1
	return func(percent float64) {
		if math.IsNaN(percent) {
			return
		}
		rounded := queue.Percent(percent)
		mu.Lock()
		defer mu.Unlock()
		if rounded == last {
			return
		}
		last = rounded
		if err := m.store.UpdateProgress(ctx, jobID, float64(rounded)); err != nil && ctx.Err() == nil {
			logger.Debug("progress update failed", logging.Error(err))
		}
	}
}

func (m *Manager) completeJob(ctx context.Context, logger *slog.Logger, job *queue.Job, result any, start time.Time) {
	persistCtx := context.WithoutCancel(ctx)
	if err := m.store.Complete(persistCtx, job.ID, result); err != nil {
		logger.Error("failed to persist job completion",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_complete_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		m.setLastError(err)
		return
	}
	metrics.JobsFinishedTotal.WithLabelValues(string(job.Type), "completed").Inc()
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Duration("job_duration", time.Since(start)),
	)
	m.recordLastJob(persistCtx, job.ID)
}

func (m *Manager) cancelJob(ctx context.Context, lane *laneState, logger *slog.Logger, job *queue.Job, start time.Time) {
	persistCtx := context.WithoutCancel(ctx)
	if err := m.store.MarkCancelled(persistCtx, job.ID); err != nil {
		logger.Error("failed to persist job cancellation", logging.Error(err))
		m.setLastError(err)
		return
	}
	metrics.JobsFinishedTotal.WithLabelValues(string(job.Type), "cancelled").Inc()
	logger.Info("job cancelled",
		logging.String(logging.FieldEventType, "job_cancelled"),
		logging.Duration("job_duration", time.Since(start)),
	)
	cancelErr := services.Wrap(services.ErrCancelled, "workflow", string(job.Type), "cancelled by operator", nil)
	m.notifyFailure(persistCtx, lane, job, cancelErr, queue.Outcome{Terminal: true, Attempts: job.Attempts})
	m.recordLastJob(persistCtx, job.ID)
}

// abandonJob drops an attempt the queue no longer considers ours, leaving the
// row as the reclaim or the operator left it.
func (m *Manager) abandonJob(logger *slog.Logger, job *queue.Job) {
	metrics.JobsFinishedTotal.WithLabelValues(string(job.Type), "abandoned").Inc()
	logger.Warn("job no longer active; abandoning attempt",
		logging.String(logging.FieldEventType, "job_abandoned"),
		logging.String(logging.FieldErrorHint, "raise queue.heartbeat_timeout if workers stall under load"),
	)
}

// releaseJob hands an interrupted attempt back to the queue without
// consuming it, so shutdown does not count against max attempts.
func (m *Manager) releaseJob(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if err := m.store.Release(context.WithoutCancel(ctx), job.ID); err != nil {
		logger.Warn("failed to release job on shutdown; heartbeat reclaim will recover it",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_release_failed"),
		)
		return
	}
	metrics.JobsFinishedTotal.WithLabelValues(string(job.Type), "released").Inc()
	logger.Debug("job released on shutdown", logging.String(logging.FieldEventType, "job_released"))
}

func withJobContext(ctx context.Context, worker string, job *queue.Job, requestID string) context.Context {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithJobType(ctx, string(job.Type))
	ctx = services.WithWorker(ctx, worker)
	ctx = services.WithArtifactID(ctx, job.ArtifactID)
	return services.WithRequestID(ctx, requestID)
}
