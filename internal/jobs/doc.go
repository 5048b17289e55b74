// Package jobs implements the queue handlers for transcode, transcribe and
// transfer jobs.
//
// Each handler decodes its payload, declares the artifact lock keys the
// workflow manager must hold, keeps the owning record's status field in step
// with the attempt (PENDING, PROCESSING, COMPLETED, FAILED), and enqueues any
// follow-up work. Handlers are safe to re-run: a retry of a finished step
// converges on the already recorded result instead of redoing it.
package jobs
