// Package daemon coordinates the long-running splicer process.
//
// Build wires configuration, the SQLite queue and record stores, per-artifact
// locks, the ffmpeg-backed media services, and the job handlers into a
// Components graph that both the daemon and the CLI use. Daemon adds the
// lifecycle on top: a flock-based instance lock, the worker pool, the HTTP
// API, and the queue metrics sampler.
//
// Keep orchestration logic here: individual job steps live in their
// respective packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
