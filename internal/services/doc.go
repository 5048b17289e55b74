// Package services defines shared utilities consumed by job handlers, the
// editing engine, and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, job types, worker names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures keep both a
//     classification (invalid segment, tool unavailable, transfer failure...)
//     and the underlying cause.
//   - Retry classification used by the worker pool to decide between backoff
//     and a terminal failure.
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
