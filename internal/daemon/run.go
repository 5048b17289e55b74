package daemon

import (
	"context"
	"log/slog"

	"splicer/internal/config"
	"splicer/internal/logging"
)

// Run builds the component graph, starts the daemon, and blocks until ctx
// is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	components, err := Build(cfg, logger)
	if err != nil {
		return err
	}
	d, err := New(components)
	if err != nil {
		components.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("splicerd shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}
