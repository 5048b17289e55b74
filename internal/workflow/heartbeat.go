package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"splicer/internal/logging"
	"splicer/internal/metrics"
	"splicer/internal/queue"
)

// HeartbeatMonitor manages job heartbeats and stale job reclamation.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStaleJobs returns active jobs whose owner stopped heartbeating to
// waiting, or fails them when their attempts are spent.
func (h *HeartbeatMonitor) ReclaimStaleJobs(ctx context.Context, logger *slog.Logger) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		metrics.StaleJobsReclaimedTotal.Add(float64(reclaimed))
		logger.Info("reclaimed stale jobs",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "heartbeat_reclaim"),
		)
	}
	return nil
}

// StartLoop refreshes the heartbeat for jobID until ctx ends. onCancel is
// called once when an operator has requested cancellation and onLost once
// when the job is no longer active under this worker.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64, onCancel, onLost func()) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cancel, err := h.store.UpdateHeartbeat(ctx, jobID)
			if err != nil {
				switch {
				case errors.Is(err, context.Canceled):
					logger.Debug("heartbeat update cancelled")
				case errors.Is(err, queue.ErrNotActive):
					logger.Warn("job no longer active; stopping heartbeat", logging.Error(err))
					if onLost != nil {
						onLost()
					}
					return
				default:
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
				continue
			}
			if cancel && onCancel != nil {
				logger.Info("cancellation requested", logging.String(logging.FieldEventType, "job_cancel_requested"))
				onCancel()
				return
			}
		}
	}
}
