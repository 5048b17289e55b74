package workflow

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"splicer/internal/queue"
)

// ProgressFunc receives a 0-100 completion percentage.
type ProgressFunc func(percent float64)

// Handler executes one job. The returned value is stored as the job result.
// Handlers must be safe to re-run after a partial failure.
type Handler interface {
	Handle(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	return f(ctx, job, progress)
}

// LockKeyer is implemented by handlers whose jobs touch artifacts. The
// manager holds every returned lock key for the whole attempt.
type LockKeyer interface {
	LockKeys(job *queue.Job) ([]string, error)
}

// FailureHandler is notified after a failed or cancelled attempt has been
// recorded on the queue.
type FailureHandler interface {
	OnFailure(ctx context.Context, job *queue.Job, err error, outcome queue.Outcome)
}

// HealthChecker reports handler readiness for status output.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

type laneState struct {
	jobType     queue.Type
	handler     Handler
	concurrency int
	timeout     time.Duration
	limiter     *rate.Limiter
	preflight   bool
	logger      *slog.Logger
	active      atomic.Int32
}
