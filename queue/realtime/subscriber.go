// Package realtime implements worker.Realtime over Postgres
// LISTEN/NOTIFY, grounded on the zedaapi repository's
// ListenForNotifications pattern: a connection acquired from the pool
// issues LISTEN, and a goroutine loops on WaitForNotification,
// decoding the {event, queue, job_id} payload the aimq_notify_job
// trigger (queue/pgmq/schema.sql) publishes and routing a coalesced
// wake-up to the matching queue's channel.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/aimq-dev/aimq/internal"
)

// Config controls which channel a Subscriber listens on. Reconnection
// always follows internal.RetryPolicy and is not configurable here.
type Config struct {
	Channel string
}

func (c *Config) applyDefaults() {
	if c.Channel == "" {
		c.Channel = "aimq:jobs"
	}
}

type notification struct {
	Event string `json:"event"`
	Queue string `json:"queue"`
	JobID int64  `json:"job_id"`
}

// Subscriber holds one dedicated pooled connection for the lifetime
// of the subscription and fans out notifications to per-queue,
// single-slot wake-up channels. It implements worker.Realtime.
type Subscriber struct {
	pool   *pgxpool.Pool
	cfg    Config
	log    *logrus.Entry
	cancel context.CancelFunc
	done   internal.DoneChan

	mu      sync.Mutex
	waiters map[string]chan struct{}
}

// New creates a Subscriber bound to pool. Run must be called to start
// listening; until then, Subscribe channels never fire.
func New(pool *pgxpool.Pool, cfg Config, log *logrus.Entry) *Subscriber {
	cfg.applyDefaults()
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Subscriber{
		pool:    pool,
		cfg:     cfg,
		log:     log,
		waiters: make(map[string]chan struct{}),
	}
}

// Subscribe returns the coalesced wake-up channel for queueName,
// creating it on first use. The channel has a one-slot buffer: a
// burst of notifications for the same queue collapses into a single
// pending wake-up until a fiber drains it.
func (s *Subscriber) Subscribe(queueName string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.waiters[queueName]
	if !ok {
		ch = make(chan struct{}, 1)
		s.waiters[queueName] = ch
	}
	return ch
}

func (s *Subscriber) wake(queueName string) {
	s.mu.Lock()
	ch, ok := s.waiters[queueName]
	s.mu.Unlock()
	if !ok {
		s.log.WithField("queue", queueName).Debug("notification for unknown queue dropped")
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		// already has a pending wake-up; fibers poll as fallback
	}
}

// Run acquires a connection, issues LISTEN, and processes
// notifications until ctx is canceled, reconnecting with backoff on
// transport failure. Run blocks; call it from its own goroutine.
func (s *Subscriber) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(internal.DoneChan)
	defer close(s.done)

	retry := internal.RetryPolicy()
	for runCtx.Err() == nil {
		connected, err := s.listenOnce(runCtx, retry)
		if err != nil {
			s.log.WithError(err).Warn("realtime listen interrupted, reconnecting")
		}
		if connected {
			retry.Reset()
		}
	}
}

// Stop signals Run to return and waits for it to do so.
func (s *Subscriber) Stop() internal.DoneChan {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done == nil {
		done := make(internal.DoneChan)
		close(done)
		return done
	}
	return s.done
}

// listenOnce acquires a connection, LISTENs on the channel, and loops
// on WaitForNotification until the connection fails or ctx is done.
// The returned bool reports whether a LISTEN was successfully
// established, which the caller uses to decide whether to reset its
// backoff. On any failure, listenOnce pauses for retry's next
// interval before returning so Run's loop does not spin.
func (s *Subscriber) listenOnce(ctx context.Context, retry *backoff.ExponentialBackOff) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.pause(ctx, retry)
		return false, err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN \""+s.cfg.Channel+"\""); err != nil {
		s.pause(ctx, retry)
		return false, err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			s.pause(ctx, retry)
			return true, err
		}
		var payload notification
		if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
			s.log.WithError(err).WithField("payload", n.Payload).Warn("malformed realtime payload")
			continue
		}
		s.wake(payload.Queue)
	}
}

func (s *Subscriber) pause(ctx context.Context, retry *backoff.ExponentialBackOff) {
	delay := retry.NextBackOff()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
