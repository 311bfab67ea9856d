package worker

import (
	"errors"
	"time"

	"github.com/aimq-dev/aimq/pipeline"
)

var (
	errEmptyQueueName         = errors.New("queue name must not be empty")
	errNilRunnable            = errors.New("runnable must not be nil")
	errBatchSizeTooSmall      = errors.New("batch_size must be >= 1")
	errVisibilityBelowTimeout = errors.New("visibility_timeout must be >= timeout")
)

// Default values applied by Register when the corresponding
// Descriptor field is left at its zero value.
const (
	DefaultTimeout   = 300 * time.Second
	DefaultBatchSize = 1
	DefaultIdleWait  = 10 * time.Second
)

// Descriptor captures a queue's processing policy at registration
// time. A Descriptor is immutable once the owning Worker has started.
type Descriptor struct {
	// Queue is the PGMQ queue name this descriptor binds to.
	Queue string

	// Runnable is the pipeline executed against every job read from
	// Queue.
	Runnable pipeline.Runnable

	// Timeout is how long a single job's invocation may run before
	// it is abandoned. Defaults to DefaultTimeout.
	Timeout time.Duration

	// VisibilityTimeout is the vt passed to the queue's read call.
	// Must be >= Timeout so a job cannot become eligible for
	// redelivery while it is still legitimately running. Defaults to
	// Timeout.
	VisibilityTimeout time.Duration

	// BatchSize is the maximum number of jobs fetched per read, and
	// the concurrency cap for dispatching them. Must be >= 1;
	// Register rejects BatchSize=0 rather than defaulting it.
	BatchSize int

	// DeleteOnFinish selects the finalize action on success: true
	// deletes the message, false archives it.
	DeleteOnFinish bool

	// Tags are static strings attached to every Job read from Queue.
	Tags []string

	// IdleWait is how long a scheduling fiber waits for a realtime
	// wake-up before polling anyway. Defaults to DefaultIdleWait.
	IdleWait time.Duration
}

// validateBatchSize rejects batch_size=0 before applyDefaults gets a
// chance to paper over it with DefaultBatchSize. spec.md §8 requires
// batch_size=0 to fail registration outright, not silently default.
func (d *Descriptor) validateBatchSize() error {
	if d.BatchSize < 1 {
		return &ConfigError{Queue: d.Queue, Field: "batch_size", Cause: errBatchSizeTooSmall}
	}
	return nil
}

func (d *Descriptor) applyDefaults() {
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.VisibilityTimeout <= 0 {
		d.VisibilityTimeout = d.Timeout
	}
	if d.BatchSize <= 0 {
		d.BatchSize = DefaultBatchSize
	}
	if d.IdleWait <= 0 {
		d.IdleWait = DefaultIdleWait
	}
}

// validate checks the invariants from spec.md §4.5/§8: batch_size >= 1
// and visibility_timeout >= timeout. It is called after defaults are
// applied, so it only ever rejects values the caller explicitly set.
func (d *Descriptor) validate() error {
	if d.Queue == "" {
		return &ConfigError{Queue: d.Queue, Field: "queue", Cause: errEmptyQueueName}
	}
	if d.Runnable == nil {
		return &ConfigError{Queue: d.Queue, Field: "runnable", Cause: errNilRunnable}
	}
	if d.BatchSize < 1 {
		return &ConfigError{Queue: d.Queue, Field: "batch_size", Cause: errBatchSizeTooSmall}
	}
	if d.VisibilityTimeout < d.Timeout {
		return &ConfigError{Queue: d.Queue, Field: "visibility_timeout", Cause: errVisibilityBelowTimeout}
	}
	return nil
}
