package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/aimq-dev/aimq/internal"
	"github.com/aimq-dev/aimq/job"
	"github.com/aimq-dev/aimq/pipeline"
	"github.com/aimq-dev/aimq/queue"
	"github.com/aimq-dev/aimq/queueerr"
	"github.com/aimq-dev/aimq/value"
)

// finalizeRetries bounds how many times a finalize call (delete or
// archive) is retried after a transport error before the message is
// left for PGMQ to redeliver.
const finalizeRetries = 3

// processor turns a (Descriptor, Job) pair into a finalized outcome:
// it invokes the descriptor's Runnable under a deadline, then deletes
// or archives the message depending on the outcome.
type processor struct {
	descriptor *Descriptor
	client     queue.Client
	log        *logrus.Entry
	pool       *internal.WorkerPool[*job.Job]
}

func newProcessor(d *Descriptor, client queue.Client, log *logrus.Entry) *processor {
	return &processor{
		descriptor: d,
		client:     client,
		log:        log.WithField("queue", d.Queue),
		pool:       internal.NewWorkerPool[*job.Job](d.BatchSize, d.BatchSize, slog.Default()),
	}
}

func (p *processor) start(ctx context.Context) {
	p.pool.Start(ctx, p.handle)
}

func (p *processor) stop() internal.DoneChan {
	return p.pool.Stop()
}

// dispatch pushes j into the bounded concurrency pool. It returns
// false if the pool has been shut down.
func (p *processor) dispatch(j *job.Job) bool {
	return p.pool.Push(j)
}

func (p *processor) handle(ctx context.Context, j *job.Job) {
	start := time.Now()
	// A job a pool worker has picked up runs to completion under its
	// own deadline; Stop's cancellation of ctx does not reach it.
	ctx = context.WithoutCancel(ctx)
	deadline, cancel := context.WithTimeout(ctx, p.descriptor.Timeout)
	defer cancel()

	pc := pipeline.Context{Original: j.Original()}
	out, err := p.invoke(deadline, j, pc)

	if errors.Is(deadline.Err(), context.DeadlineExceeded) {
		p.log.WithFields(logrus.Fields{
			"message_id": j.MessageID,
			"read_count": j.ReadCount,
			"duration":   time.Since(start),
		}).Warn("job_timeout")
		return
	}

	if err != nil {
		p.handlePipelineError(ctx, j, err)
		return
	}

	_ = out
	p.finalize(ctx, j, start)
}

func (p *processor) invoke(ctx context.Context, j *job.Job, pc pipeline.Context) (value.Value, error) {
	return p.descriptor.Runnable.Invoke(ctx, value.FromObject(j.Payload), pc)
}

func (p *processor) handlePipelineError(ctx context.Context, j *job.Job, err error) {
	p.log.WithFields(logrus.Fields{
		"message_id": j.MessageID,
		"error":      err,
	}).Error("job_failed")
	// PipelineError: archive, never delete, so the failure is
	// inspectable but not retried automatically.
	if archiveErr := p.archiveWithRetry(ctx, j); archiveErr != nil {
		p.log.WithFields(logrus.Fields{
			"message_id": j.MessageID,
			"error":      archiveErr,
		}).Error("finalize_failed")
	}
}

func (p *processor) finalize(ctx context.Context, j *job.Job, start time.Time) {
	var finalizeErr error
	if p.descriptor.DeleteOnFinish {
		finalizeErr = p.deleteWithRetry(ctx, j)
	} else {
		finalizeErr = p.archiveWithRetry(ctx, j)
	}
	if finalizeErr != nil {
		p.log.WithFields(logrus.Fields{
			"message_id": j.MessageID,
			"error":      finalizeErr,
		}).Error("finalize_failed")
		return
	}
	p.log.WithFields(logrus.Fields{
		"message_id": j.MessageID,
		"duration":   time.Since(start),
	}).Info("job_succeeded")
}

func (p *processor) deleteWithRetry(ctx context.Context, j *job.Job) error {
	_, err := internal.Retry(ctx, finalizeRetries+1, func() (struct{}, error) {
		e := p.client.Delete(ctx, j.QueueName, j.MessageID)
		if e != nil && !queueerr.Is(e, queueerr.Transport) {
			return struct{}{}, backoff.Permanent(e)
		}
		return struct{}{}, e
	})
	return err
}

func (p *processor) archiveWithRetry(ctx context.Context, j *job.Job) error {
	_, err := internal.Retry(ctx, finalizeRetries+1, func() (struct{}, error) {
		e := p.client.Archive(ctx, j.QueueName, j.MessageID)
		if e != nil && !queueerr.Is(e, queueerr.Transport) {
			return struct{}{}, backoff.Permanent(e)
		}
		return struct{}{}, e
	})
	return err
}
