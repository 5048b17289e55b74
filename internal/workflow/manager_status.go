package workflow

import (
	"context"

	"splicer/internal/logging"
	"splicer/internal/queue"
)

// LaneStatus describes one job type's worker pool.
type LaneStatus struct {
	Type        queue.Type `json:"type"`
	Concurrency int        `json:"concurrency"`
	Active      int        `json:"active"`
	RateLimited bool       `json:"rateLimited"`
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool                        `json:"running"`
	LastError  string                      `json:"lastError,omitempty"`
	LastJob    *queue.Job                  `json:"lastJob,omitempty"`
	QueueStats map[queue.Type]queue.Counts `json:"queueStats"`
	Lanes      []LaneStatus                `json:"lanes"`
	Health     map[string]Health           `json:"health"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	lanes := make([]*laneState, 0, len(m.laneOrder))
	for _, jobType := range m.laneOrder {
		if lane := m.lanes[jobType]; lane != nil {
			lanes = append(lanes, lane)
		}
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	summary := StatusSummary{
		Running:    running,
		QueueStats: stats,
		Health:     make(map[string]Health, len(lanes)),
	}
	for _, lane := range lanes {
		summary.Lanes = append(summary.Lanes, LaneStatus{
			Type:        lane.jobType,
			Concurrency: lane.concurrency,
			Active:      int(lane.active.Load()),
			RateLimited: lane.limiter != nil,
		})
		if checker, ok := lane.handler.(HealthChecker); ok {
			summary.Health[string(lane.jobType)] = checker.HealthCheck(ctx)
		}
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// recordLastJob reloads the job so status shows its persisted outcome.
func (m *Manager) recordLastJob(ctx context.Context, id int64) {
	job, err := m.store.Get(ctx, id)
	if err != nil || job == nil {
		return
	}
	m.mu.Lock()
	m.lastJob = job
	m.mu.Unlock()
}
