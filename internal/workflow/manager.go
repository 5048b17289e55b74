package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"splicer/internal/config"
	"splicer/internal/locks"
	"splicer/internal/logging"
	"splicer/internal/queue"
)

// Manager coordinates job processing across per-type lanes.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	locks        *locks.Manager
	logger       *slog.Logger
	pollInterval time.Duration
	backoff      queue.Backoff
	ownerID      string

	heartbeat *HeartbeatMonitor

	lanes     map[queue.Type]*laneState
	laneOrder []queue.Type

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPollInterval overrides the idle poll interval.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithHeartbeat overrides the heartbeat interval and stale timeout.
func WithHeartbeat(interval, timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.heartbeat.heartbeatInterval = interval
		m.heartbeat.heartbeatTimeout = timeout
	}
}

// WithBackoff overrides the retry backoff.
func WithBackoff(b queue.Backoff) ManagerOption {
	return func(m *Manager) { m.backoff = b }
}

// NewManager constructs a manager. lockManager may be nil when handlers
// declare no lock keys.
func NewManager(cfg *config.Config, store *queue.Store, lockManager *locks.Manager, logger *slog.Logger, opts ...ManagerOption) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	host, _ := os.Hostname()
	m := &Manager{
		cfg:          cfg,
		store:        store,
		locks:        lockManager,
		logger:       logger,
		pollInterval: time.Duration(cfg.Queue.PollIntervalSeconds) * time.Second,
		backoff:      queue.Backoff{Base: cfg.BackoffBase(), Max: cfg.BackoffMax()},
		ownerID:      fmt.Sprintf("%s-%d", host, os.Getpid()),
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Queue.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Queue.HeartbeatTimeout)*time.Second,
		),
		lanes: make(map[queue.Type]*laneState),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	return m
}
