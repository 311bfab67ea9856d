package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aimq-dev/aimq/internal"
	"github.com/aimq-dev/aimq/job"
	"github.com/aimq-dev/aimq/pipeline"
	"github.com/aimq-dev/aimq/queue"
	"github.com/aimq-dev/aimq/queueerr"
	"github.com/aimq-dev/aimq/value"
)

func toValueObject(payload map[string]any) (value.Object, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return value.ParseObject(raw)
}

// Realtime is the wake-up source a Worker selects on alongside its
// idle timer. queue/realtime.Subscriber implements this; tests may
// supply a fake that never fires, falling back to pure polling.
type Realtime interface {
	// Subscribe returns a channel that receives a value whenever an
	// enqueue notification for queueName (or a wildcard) arrives. The
	// channel is coalesced: a burst of notifications may be collapsed
	// into a single wake-up.
	Subscribe(queueName string) <-chan struct{}
}

type noRealtime struct{}

func (noRealtime) Subscribe(string) <-chan struct{} {
	return nil
}

// Worker supervises every registered queue, running one scheduling
// fiber per queue. It owns a single queue.Client and a single
// realtime subscription shared across all fibers.
//
// Worker has a strict lifecycle: stopped -> starting -> running ->
// stopping -> stopped. Start may only be called once per stopped
// period; the set of registered queues is frozen once running.
type Worker struct {
	lcBase

	client   queue.Client
	realtime Realtime
	log      *logrus.Logger

	mu          sync.Mutex
	descriptors map[string]*Descriptor
	processors  map[string]*processor
	cancel      context.CancelFunc
	fiberWG     sync.WaitGroup
}

// New creates a Worker bound to client. If realtime is nil, fibers
// never receive wake-up events and rely solely on their idle timer.
func New(client queue.Client, rt Realtime, log *logrus.Logger) *Worker {
	if rt == nil {
		rt = noRealtime{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &Worker{
		client:      client,
		realtime:    rt,
		log:         log,
		descriptors: make(map[string]*Descriptor),
		processors:  make(map[string]*processor),
	}
}

// Register binds a Descriptor to the worker. Registering the same
// queue name twice, or registering after Start, returns a
// *ConfigError.
func (w *Worker) Register(d Descriptor) error {
	if err := d.validateBatchSize(); err != nil {
		return err
	}
	d.applyDefaults()
	if err := d.validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.State() != StateStopped {
		return &ConfigError{Queue: d.Queue, Field: "queue", Cause: fmt.Errorf("cannot register after start")}
	}
	if _, exists := w.descriptors[d.Queue]; exists {
		return &ConfigError{Queue: d.Queue, Field: "queue", Cause: fmt.Errorf("queue already registered")}
	}
	w.descriptors[d.Queue] = &d
	return nil
}

// Task registers queue with a plain Go function instead of a
// pre-built pipeline.Runnable, lifting it via pipeline.Func. Other
// descriptor fields come from the rest of opts.
func (w *Worker) Task(queueName string, fn pipeline.Adapter, opts Descriptor) error {
	opts.Queue = queueName
	opts.Runnable = pipeline.Func(fn)
	return w.Register(opts)
}

// Send enqueues a payload on queueName through the worker's
// queue.Client, becoming visible after delay.
func (w *Worker) Send(ctx context.Context, queueName string, payload map[string]any, delay time.Duration) (int64, error) {
	obj, err := toValueObject(payload)
	if err != nil {
		return 0, queueerr.New(queueerr.Validation, queueName, err)
	}
	return w.client.Send(ctx, queueName, obj, delay)
}

// Start launches one scheduling fiber per registered queue. Start
// returns ErrDoubleStarted if the worker is already starting or
// running.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.tryStart(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.mu.Lock()
	for name, d := range w.descriptors {
		p := newProcessor(d, w.client, w.log.WithField("queue", name))
		w.processors[name] = p
		p.start(runCtx)
		w.fiberWG.Add(1)
		go w.runFiber(runCtx, d, p)
	}
	w.mu.Unlock()

	w.markRunning()
	return nil
}

// Stop initiates graceful shutdown: scheduling fibers stop pulling
// new work, jobs a pool worker has already picked up run to
// completion under their own deadline, and the method returns once
// every fiber and pool worker has exited or ctx is done, whichever
// comes first. Jobs still waiting in a pool's buffer when it stops
// are not started; PGMQ redelivers them after their visibility
// timeout.
func (w *Worker) Stop(ctx context.Context) error {
	return w.tryStop(ctx, w.doStop)
}

func (w *Worker) doStop() internal.DoneChan {
	w.cancel()
	var dones []internal.DoneChan
	w.mu.Lock()
	for _, p := range w.processors {
		dones = append(dones, p.stop())
	}
	w.mu.Unlock()

	fibersDone := make(internal.DoneChan)
	go func() {
		w.fiberWG.Wait()
		close(fibersDone)
	}()
	dones = append(dones, fibersDone)

	// fibersDone is unconditionally appended above, so dones is never
	// empty even when no queues were registered.
	combined := dones[0]
	for _, d := range dones[1:] {
		combined = internal.Combine(combined, d)
	}
	return combined
}

// runFiber is the scheduling loop for one queue: idle, read, dispatch,
// repeat, grounded on the spec's idle/realtime-wakeup/read/dispatch
// cycle.
func (w *Worker) runFiber(ctx context.Context, d *Descriptor, p *processor) {
	defer w.fiberWG.Done()

	wake := w.realtime.Subscribe(d.Queue)
	backoffPause := time.Duration(0)

	for {
		if backoffPause > 0 {
			timer := time.NewTimer(backoffPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else {
			timer := time.NewTimer(d.IdleWait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-wake:
				timer.Stop()
			case <-timer.C:
			}
		}

		rows, err := w.client.Read(ctx, d.Queue, d.BatchSize, d.VisibilityTimeout)
		if err != nil {
			if queueerr.Is(err, queueerr.NotFound) {
				backoffPause = w.handleNotFound(ctx, d, backoffPause)
				continue
			}
			w.log.WithFields(logrus.Fields{"queue": d.Queue, "error": err}).Error("read_failed")
			backoffPause = nextPause(backoffPause)
			continue
		}
		backoffPause = 0

		for _, row := range rows {
			jb, ferr := job.FromRow(d.Queue, row, d.Tags)
			if ferr != nil {
				w.log.WithFields(logrus.Fields{"queue": d.Queue, "error": ferr}).Error("row_invalid")
				continue
			}
			if !p.dispatch(jb) {
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// handleNotFound implements the spec's auto-create-once-then-backoff
// policy for a queue that disappeared or was never created.
func (w *Worker) handleNotFound(ctx context.Context, d *Descriptor, prevPause time.Duration) time.Duration {
	if prevPause == 0 {
		if err := w.client.CreateQueue(ctx, d.Queue); err != nil {
			w.log.WithFields(logrus.Fields{"queue": d.Queue, "error": err}).Error("create_queue_failed")
			return nextPause(prevPause)
		}
		return 0
	}
	w.log.WithFields(logrus.Fields{"queue": d.Queue, "pause": prevPause}).Error("queue_missing")
	return nextPause(prevPause)
}

func nextPause(prev time.Duration) time.Duration {
	const (
		initial = 200 * time.Millisecond
		ceiling = 5 * time.Second
	)
	if prev == 0 {
		return initial
	}
	next := prev * 2
	if next > ceiling {
		return ceiling
	}
	return next
}
