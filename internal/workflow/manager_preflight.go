package workflow

import (
	"fmt"
	"log/slog"
	"strings"

	"splicer/internal/logging"
	"splicer/internal/preflight"
)

// runPreflightChecks verifies the render directory has room before a lane
// claims encoding work. Returns nil when all checks pass.
func (m *Manager) runPreflightChecks(logger *slog.Logger) error {
	results := preflight.RunJobChecks(m.cfg)
	var failures []string
	for _, r := range results {
		if r.Passed {
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "free disk space in the work directory"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if len(failures) > 0 {
		return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
	}
	return nil
}
