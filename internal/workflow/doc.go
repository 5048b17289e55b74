// Package workflow runs queued jobs through registered handlers.
//
// The Manager owns one lane per job type. Each lane runs a fixed number of
// worker goroutines that claim jobs from the queue in enqueue order, wait on
// the lane's optional rate limiter, take the per-artifact locks the handler
// asks for, and execute the handler under a wall-clock timeout while a
// heartbeat loop keeps the job alive and watches for operator cancellation.
//
// Outcomes are mapped back onto the queue: success completes the job,
// retryable failures return it to waiting under exponential backoff until
// the attempt ceiling, cancellation and structural errors are terminal, and
// shutdown releases the job without spending an attempt. Lanes are
// independent; there is no ordering across job types.
package workflow
