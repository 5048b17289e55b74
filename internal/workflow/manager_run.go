package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"splicer/internal/logging"
)

// Start begins background processing. Jobs left active by a previous process
// are returned to waiting first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, jobType := range m.laneOrder {
		if lane := m.lanes[jobType]; lane != nil {
			lanes = append(lanes, lane)
		}
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow handlers not registered")
	}

	reset, err := m.store.ResetActive(ctx)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("reset active jobs: %w", err)
	}
	if reset > 0 {
		m.logger.Info("returned interrupted jobs to waiting",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "queue_reset_active"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := 1
	for _, lane := range lanes {
		lane.logger = m.laneLogger(lane)
		workers += lane.concurrency
	}
	m.wg.Add(workers)
	m.mu.Unlock()

	go m.runReclaimer(runCtx)
	for _, lane := range lanes {
		for i := range lane.concurrency {
			go m.runWorker(runCtx, lane, fmt.Sprintf("%s-%d", lane.jobType, i+1))
		}
	}
	return nil
}

// Stop terminates background processing and waits for in-flight jobs to be
// released.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.heartbeatInterval
	if interval <= 0 {
		interval = m.pollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := m.heartbeat.ReclaimStaleJobs(ctx, m.logger); err != nil && ctx.Err() == nil {
			m.logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) runWorker(ctx context.Context, lane *laneState, worker string) {
	defer m.wg.Done()
	logger := lane.logger.With(logging.String(logging.FieldWorker, worker))

	for {
		if ctx.Err() != nil {
			return
		}

		if lane.preflight {
			if err := m.runPreflightChecks(logger); err != nil {
				m.setLastError(err)
				m.waitForJobOrShutdown(ctx)
				continue
			}
		}

		reservation, wait := m.reserve(lane)
		if wait > 0 {
			m.sleep(ctx, min(wait, m.pollInterval))
			continue
		}

		job, err := m.store.Claim(ctx, lane.jobType, m.ownerID+"/"+worker)
		if err != nil {
			if reservation != nil {
				reservation.Cancel()
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			if reservation != nil {
				reservation.Cancel()
			}
			m.waitForJobOrShutdown(ctx)
			continue
		}

		m.processJob(ctx, lane, worker, job)
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	if ctx.Err() != nil {
		return
	}
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	m.waitForJobOrShutdown(ctx)
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	m.sleep(ctx, m.pollInterval)
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
