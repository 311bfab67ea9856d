// Package queue defines the storage-facing contract a worker uses to
// move jobs in and out of PGMQ-backed queues.
//
// Two implementations exist: queue/pgmq, which drives the pgmq_public
// RPC surface over a live Postgres connection, and queue/embedded,
// a bun+sqlite backend used in development and in the test suite when
// no Postgres connection is configured.
package queue

import (
	"context"
	"time"

	"github.com/aimq-dev/aimq/job"
	"github.com/aimq-dev/aimq/value"
)

// Info describes a queue as reported by ListQueues.
type Info struct {
	Name          string
	CreatedAt     time.Time
	IsPartitioned bool
	IsUnlogged    bool
}

// Client is the read-write contract a queue.Client implementation
// exposes to the worker runtime. Every method may return a
// *queueerr.Error describing why it failed.
//
// Client provides at-least-once delivery: a job may be delivered more
// than once if a worker crashes, times out, or otherwise fails to
// finalize it before the visibility timeout expires. Pipelines
// registered against a Client must be idempotent.
type Client interface {
	// Send enqueues a single message, becoming visible after delay
	// (zero delay makes it immediately visible). It returns the
	// assigned message id.
	Send(ctx context.Context, queue string, payload value.Object, delay time.Duration) (int64, error)

	// SendBatch enqueues multiple messages in one call, returning
	// their assigned message ids in the same order as payloads.
	SendBatch(ctx context.Context, queue string, payloads []value.Object, delay time.Duration) ([]int64, error)

	// Read selects up to batch visible messages and makes them
	// invisible for vt, incrementing their read count. Read does not
	// remove messages; a message remains until Archive or Delete is
	// called, or becomes visible again once vt elapses.
	Read(ctx context.Context, queue string, batch int, vt time.Duration) ([]job.Row, error)

	// Pop selects and atomically deletes up to one message in a
	// single round trip. Pop is used by tooling and tests that do not
	// need the visibility-timeout/finalize protocol.
	Pop(ctx context.Context, queue string) (*job.Row, bool, error)

	// Archive moves a message from the active queue table to the
	// archive table. Archiving an already-archived or already-deleted
	// message id is a conflict error, not a transport failure.
	Archive(ctx context.Context, queue string, messageID int64) error

	// Delete permanently removes a message from the active queue
	// table without archiving it.
	Delete(ctx context.Context, queue string, messageID int64) error

	// CreateQueue provisions a new queue, including its active and
	// archive tables. Creating a queue that already exists is a
	// no-op, not an error.
	CreateQueue(ctx context.Context, queue string) error

	// ListQueues returns metadata for every provisioned queue.
	ListQueues(ctx context.Context) ([]Info, error)

	// EnableQueueRealtime arranges for enqueue events on queue to be
	// broadcast over the realtime wakeup channel, letting workers
	// skip their idle wait when new work arrives. Implementations
	// that do not support realtime wakeup (for example, the embedded
	// backend in tests) may implement this as a no-op.
	EnableQueueRealtime(ctx context.Context, queue string) error
}
