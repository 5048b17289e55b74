// Package queue persists asynchronous jobs in SQLite.
//
// Each job has a type (transcode, transcribe, transfer), an opaque JSON
// payload, and a state that moves waiting → active → completed or failed.
// Claim hands out waiting jobs of one type in enqueue order. Failed attempts
// return to waiting with an exponential run_at delay until the attempt
// ceiling, after which the job stays failed. Progress, heartbeats, and
// cooperative cancel flags are stored on the row so the CLI and HTTP API can
// poll them while a worker runs the job.
package queue
