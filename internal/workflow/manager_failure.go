package workflow

import (
	"context"
	"log/slog"
	"time"

	"splicer/internal/logging"
	"splicer/internal/metrics"
	"splicer/internal/queue"
	"splicer/internal/services"
)

func (m *Manager) finishWithError(ctx context.Context, lane *laneState, logger *slog.Logger, job *queue.Job, jobErr error, start time.Time) {
	persistCtx := context.WithoutCancel(ctx)
	outcome, err := m.store.Fail(persistCtx, job.ID, jobErr, m.backoff, services.Retryable(jobErr))
	if err != nil {
		logger.Error("failed to persist job failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_fail_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		m.setLastError(err)
		return
	}
	m.setLastError(jobErr)

	attrs := []logging.Attr{
		logging.Error(jobErr),
		logging.String("error_kind", services.Kind(jobErr)),
		logging.Int("attempt", outcome.Attempts),
		logging.Int("max_attempts", job.MaxAttempts),
		logging.Duration("job_duration", time.Since(start)),
	}
	if outcome.Terminal {
		metrics.JobsFinishedTotal.WithLabelValues(string(job.Type), "failed").Inc()
		attrs = append(attrs, logging.String(logging.FieldImpact, "job will not be retried automatically"))
		logging.ErrorWithContext(logger, "job failed", "job_failed", attrs...)
	} else {
		metrics.JobsFinishedTotal.WithLabelValues(string(job.Type), "retry").Inc()
		attrs = append(attrs, logging.Duration("retry_in", outcome.Delay))
		logging.WarnWithContext(logger, "job attempt failed; retry scheduled", "job_retry", attrs...)
	}

	m.notifyFailure(persistCtx, lane, job, jobErr, outcome)
	m.recordLastJob(persistCtx, job.ID)
}

func (m *Manager) notifyFailure(ctx context.Context, lane *laneState, job *queue.Job, jobErr error, outcome queue.Outcome) {
	handler, ok := lane.handler.(FailureHandler)
	if !ok {
		return
	}
	handler.OnFailure(ctx, job, jobErr, outcome)
}
