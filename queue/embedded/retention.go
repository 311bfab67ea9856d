package embedded

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aimq-dev/aimq/internal"
)

// RetentionConfig controls how RetentionWorker sweeps archived rows.
type RetentionConfig struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
	// OlderThan, if positive, restricts deletion to rows archived at
	// least OlderThan ago. Zero purges every archived row on each
	// sweep.
	OlderThan time.Duration
}

// RetentionWorker periodically calls PurgeArchived, the embedded
// backend's analogue of the teacher's CleanWorker. It does not share
// worker.Worker's state machine (doing so would require queue/embedded
// to import worker, which already imports queue) so it carries its own
// minimal started/stopped guard.
type RetentionWorker struct {
	client  *Client
	cfg     RetentionConfig
	log     *logrus.Entry
	task    internal.TimerTask
	started atomic.Bool
}

// NewRetentionWorker creates a RetentionWorker bound to client.
func NewRetentionWorker(client *Client, cfg RetentionConfig, log *logrus.Entry) *RetentionWorker {
	return &RetentionWorker{client: client, cfg: cfg, log: log}
}

func (r *RetentionWorker) sweep(ctx context.Context) {
	var before *time.Time
	if r.cfg.OlderThan > 0 {
		t := time.Now().Add(-r.cfg.OlderThan)
		before = &t
	}
	n, err := r.client.PurgeArchived(ctx, before)
	if err != nil {
		r.log.WithError(err).Error("retention sweep failed")
		return
	}
	r.log.WithField("purged", n).Info("retention sweep complete")
}

// Start begins periodic sweeping. Start is a no-op if the worker is
// already running.
func (r *RetentionWorker) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	r.task.Start(ctx, r.sweep, r.cfg.Interval)
}

// Stop halts the sweep and returns a channel closed once it has fully
// stopped.
func (r *RetentionWorker) Stop() internal.DoneChan {
	if !r.started.CompareAndSwap(true, false) {
		done := make(internal.DoneChan)
		close(done)
		return done
	}
	return r.task.Stop()
}
