package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"splicer/internal/config"
	"splicer/internal/deps"
	"splicer/internal/httpapi"
	"splicer/internal/logging"
	"splicer/internal/metrics"
	"splicer/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	components *Components
	api        *httpapi.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                   `json:"running"`
	PID          int                    `json:"pid"`
	DatabasePath string                 `json:"databasePath"`
	LockFilePath string                 `json:"lockFilePath"`
	APIAddress   string                 `json:"apiAddress,omitempty"`
	Workflow     workflow.StatusSummary `json:"workflow"`
	Dependencies []deps.Status          `json:"dependencies"`
}

// New constructs a daemon around an already built component graph.
func New(c *Components) (*Daemon, error) {
	if c == nil || c.Config == nil || c.Store == nil || c.Workflow == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	lockPath := filepath.Join(c.Config.Paths.LockDir, "splicerd.lock")
	d := &Daemon{
		cfg:        c.Config,
		logger:     logging.NewComponentLogger(c.Logger, "daemon"),
		components: c,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	if c.Config.API.Enabled {
		d.api = httpapi.New(httpapi.Deps{
			Records:  c.Records,
			Jobs:     c.Store,
			Status:   d,
			Uploader: c.Uploads,
			Importer: c.Editor,
			Token:    c.Config.API.Token,
			Logger:   c.Logger,
		})
	}
	return d, nil
}

// Start acquires the instance lock, resets orphaned jobs, and launches the
// worker pool, the API server, and the metrics sampler.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another splicer daemon instance is already running")
	}

	if missing := deps.MissingRequired(deps.CheckSystemDeps(d.cfg)); len(missing) > 0 {
		logging.WarnWithContext(d.logger, "required binaries unavailable", "dependency_missing",
			logging.Any("missing", missing),
			logging.String(logging.FieldImpact, "jobs needing these tools will fail until installed"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.components.Workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.api != nil {
		if err := d.api.Start(runCtx, d.cfg.API.Bind); err != nil {
			cancel()
			d.components.Workflow.Stop()
			_ = d.lock.Unlock()
			return err
		}
	}

	collector := metrics.NewCollector(d.components.Store, 0, d.logger)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		collector.Run(runCtx)
	}()

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("splicer daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.Addr()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.Stop()
	d.components.Workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("splicer daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the stores.
func (d *Daemon) Close() error {
	d.Stop()
	return d.components.Close()
}

// Status returns the worker pool summary. It satisfies httpapi.StatusProvider.
func (d *Daemon) Status(ctx context.Context) workflow.StatusSummary {
	return d.components.Workflow.Status(ctx)
}

// Describe returns the full daemon status including dependency checks.
func (d *Daemon) Describe(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.Paths.DatabasePath,
		LockFilePath: d.lockPath,
		APIAddress:   d.api.Addr(),
		Workflow:     d.Status(ctx),
		Dependencies: deps.CheckSystemDeps(d.cfg),
	}
}
