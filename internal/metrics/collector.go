package metrics

import (
	"context"
	"log/slog"
	"time"

	"splicer/internal/logging"
	"splicer/internal/queue"
)

// StatsProvider reports queue counts.
type StatsProvider interface {
	Stats(ctx context.Context) (map[queue.Type]queue.Counts, error)
}

// Collector periodically samples queue counts into QueueJobs.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	logger   *slog.Logger
}

// NewCollector creates a new metrics collector.
func NewCollector(provider StatsProvider, interval time.Duration, logger *slog.Logger) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Collector{provider: provider, interval: interval, logger: logging.NewComponentLogger(logger, "metrics")}
}

// Run collects until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	c.Collect(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Collect samples queue counts once.
func (c *Collector) Collect(ctx context.Context) {
	if c.provider == nil {
		return
	}
	stats, err := c.provider.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("queue stats unavailable", logging.Error(err))
		}
		return
	}
	for _, typ := range queue.AllTypes() {
		counts := stats[typ]
		for _, state := range queue.AllStates() {
			QueueJobs.WithLabelValues(string(typ), string(state)).Set(float64(counts[state]))
		}
	}
}
