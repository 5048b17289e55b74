package workflow

import (
	"log/slog"

	"splicer/internal/logging"
)

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	name := string(lane.jobType)
	return m.logger.With(
		logging.String(logging.FieldComponent, "workflow-"+name+"-runner"),
		logging.String("lane", name),
	)
}
