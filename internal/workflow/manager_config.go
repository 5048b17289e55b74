package workflow

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"splicer/internal/config"
	"splicer/internal/queue"
)

// Register installs the handler for a job type, sizing its lane from the
// [queue.<type>] configuration. Registering the same type twice replaces the
// handler.
func (m *Manager) Register(jobType queue.Type, handler Handler) error {
	if handler == nil {
		return errors.New("register: handler is nil")
	}
	laneCfg, ok := m.cfg.LaneFor(string(jobType))
	if !ok {
		return fmt.Errorf("register: no lane configuration for job type %q", jobType)
	}

	lane := &laneState{
		jobType:     jobType,
		handler:     handler,
		concurrency: max(laneCfg.Concurrency, 1),
		timeout:     time.Duration(laneCfg.TimeoutSeconds) * time.Second,
		limiter:     newLimiter(laneCfg),
		preflight:   jobType == queue.TypeTranscode,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("register: manager already running")
	}
	if _, exists := m.lanes[jobType]; !exists {
		m.laneOrder = append(m.laneOrder, jobType)
	}
	m.lanes[jobType] = lane
	return nil
}

// newLimiter allows RateLimit jobs per RateWindowSeconds, bursting up to the
// full allowance. A zero limit disables rate limiting.
func newLimiter(lane config.Lane) *rate.Limiter {
	if lane.RateLimit <= 0 || lane.RateWindowSeconds <= 0 {
		return nil
	}
	window := time.Duration(lane.RateWindowSeconds) * time.Second
	return rate.NewLimiter(rate.Every(window/time.Duration(lane.RateLimit)), lane.RateLimit)
}
