// Package worker implements the AIMQ worker runtime: the supervisor
// that multiplexes many named PGMQ queues, each bound to a pipeline,
// and coordinates their scheduling, dispatch, and finalization.
//
// # Overview
//
// A Worker owns one queue.Client and, optionally, one realtime
// subscription, shared across every registered queue. Each registered
// queue runs its own scheduling fiber: wait for a wake-up (realtime
// event or idle timer), read a batch, dispatch each job to the bound
// Runnable under a per-job deadline, then finalize.
//
// # Delivery semantics
//
// aimq provides at-least-once delivery, the same guarantee PGMQ
// itself provides: a job may be delivered more than once if a worker
// crashes, times out, or fails to finalize before its visibility
// timeout expires. Runnables must be idempotent.
//
// Unlike a typical lease-extension worker, aimq does not extend a
// job's visibility timeout while it runs. A job's deadline is fixed
// at read time; if the deadline fires before the Runnable finishes,
// the job is abandoned without finalizing, and PGMQ redelivers it once
// the visibility window elapses.
//
// # State machine
//
// A Worker moves through:
//
//	stopped -> starting -> running -> stopping -> stopped
//
// The set of registered queues is frozen whenever the worker is not
// stopped; Register returns a ConfigError for any call made while the
// worker is starting, running, or stopping.
package worker
