// Package logging assembles structured slog loggers and formatting helpers used
// across splicer services.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so job handlers automatically
// tag log lines with job IDs, job types, workers, and correlation IDs. File
// outputs always receive JSON so they stay machine readable regardless of the
// console format. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
