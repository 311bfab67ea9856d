// Package pgmq implements queue.Client against a live Postgres
// instance running the PGMQ extension, via the pgmq_public wrapper
// functions documented in schema.sql. It is the production backend;
// queue/embedded plays the same role for development and tests.
package pgmq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimq-dev/aimq/internal"
	"github.com/aimq-dev/aimq/job"
	"github.com/aimq-dev/aimq/queue"
	"github.com/aimq-dev/aimq/queueerr"
	"github.com/aimq-dev/aimq/value"
)

const maxAttempts = 3

// Client drives the pgmq_public RPC surface over a pgxpool.Pool. Every
// call acquires a connection for the duration of the round trip and
// releases it before returning; it holds no long-lived connection of
// its own (queue/realtime.Subscriber does, for LISTEN).
type Client struct {
	pool *pgxpool.Pool
}

// New wraps an already-configured pool. Callers own the pool's
// lifecycle (pgxpool.New/Close).
func New(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

func (c *Client) Send(ctx context.Context, queueName string, payload value.Object, delay time.Duration) (int64, error) {
	raw, err := value.FromObject(payload).MarshalJSON()
	if err != nil {
		return 0, queueerr.New(queueerr.Validation, queueName, err)
	}
	return internal.Retry(ctx, maxAttempts, func() (int64, error) {
		var id int64
		err := c.pool.QueryRow(ctx, `SELECT * FROM pgmq_public.send($1, $2::jsonb, $3)`,
			queueName, raw, int(delay.Seconds())).Scan(&id)
		if err != nil {
			return 0, classify(queueName, err)
		}
		return id, nil
	})
}

func (c *Client) SendBatch(ctx context.Context, queueName string, payloads []value.Object, delay time.Duration) ([]int64, error) {
	rawMsgs := make([]json.RawMessage, len(payloads))
	for i, p := range payloads {
		raw, err := value.FromObject(p).MarshalJSON()
		if err != nil {
			return nil, queueerr.New(queueerr.Validation, queueName, err)
		}
		rawMsgs[i] = raw
	}
	return internal.Retry(ctx, maxAttempts, func() ([]int64, error) {
		rows, err := c.pool.Query(ctx, `SELECT * FROM pgmq_public.send_batch($1, $2::jsonb[], $3)`,
			queueName, rawMsgs, int(delay.Seconds()))
		if err != nil {
			return nil, classify(queueName, err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return nil, classify(queueName, err)
		}
		return ids, nil
	})
}

type readRow struct {
	MsgID      int64
	ReadCount  int32
	EnqueuedAt time.Time
	VT         time.Time
	Message    []byte
}

func (c *Client) Read(ctx context.Context, queueName string, batch int, vt time.Duration) ([]job.Row, error) {
	return internal.Retry(ctx, maxAttempts, func() ([]job.Row, error) {
		rows, err := c.pool.Query(ctx, `SELECT msg_id, read_ct, enqueued_at, vt, message
			FROM pgmq_public.read($1, $2, $3)`,
			queueName, int(vt.Seconds()), batch)
		if err != nil {
			return nil, classify(queueName, err)
		}
		rrs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[readRow])
		if err != nil {
			return nil, classify(queueName, err)
		}
		out := make([]job.Row, len(rrs))
		for i, r := range rrs {
			out[i] = job.Row{
				MsgID:      r.MsgID,
				ReadCount:  int(r.ReadCount),
				EnqueuedAt: r.EnqueuedAt,
				VT:         r.VT,
				Message:    r.Message,
			}
		}
		return out, nil
	})
}

func (c *Client) Pop(ctx context.Context, queueName string) (*job.Row, bool, error) {
	type result struct {
		row   *job.Row
		found bool
	}
	res, err := internal.Retry(ctx, maxAttempts, func() (result, error) {
		var r readRow
		err := c.pool.QueryRow(ctx, `SELECT msg_id, read_ct, enqueued_at, vt, message
			FROM pgmq_public.pop($1)`, queueName).
			Scan(&r.MsgID, &r.ReadCount, &r.EnqueuedAt, &r.VT, &r.Message)
		if errors.Is(err, pgx.ErrNoRows) {
			return result{}, nil
		}
		if err != nil {
			return result{}, classify(queueName, err)
		}
		return result{row: &job.Row{
			MsgID:      r.MsgID,
			ReadCount:  int(r.ReadCount),
			EnqueuedAt: r.EnqueuedAt,
			VT:         r.VT,
			Message:    r.Message,
		}, found: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return res.row, res.found, nil
}

func (c *Client) Archive(ctx context.Context, queueName string, messageID int64) error {
	return c.boolCall(ctx, queueName, messageID, "pgmq_public.archive")
}

func (c *Client) Delete(ctx context.Context, queueName string, messageID int64) error {
	return c.boolCall(ctx, queueName, messageID, "pgmq_public.delete")
}

func (c *Client) boolCall(ctx context.Context, queueName string, messageID int64, fn string) error {
	_, err := internal.Retry(ctx, maxAttempts, func() (struct{}, error) {
		var ok bool
		err := c.pool.QueryRow(ctx, `SELECT * FROM `+fn+`($1, $2)`, queueName, messageID).Scan(&ok)
		if err != nil {
			return struct{}{}, classify(queueName, err)
		}
		if !ok {
			return struct{}{}, backoff.Permanent(queueerr.NewForMessage(queueerr.Conflict, queueName, messageID, errNoAffectedRow))
		}
		return struct{}{}, nil
	})
	return err
}

// CreateQueue provisions queueName with realtime enabled, matching
// spec.md §4.1's create_queue(queue, realtime=true, ...) contract: a
// freshly auto-created queue wakes its fiber on enqueue instead of
// falling back to idle polling forever.
func (c *Client) CreateQueue(ctx context.Context, queueName string) error {
	_, err := internal.Retry(ctx, maxAttempts, func() (struct{}, error) {
		var raw []byte
		err := c.pool.QueryRow(ctx, `SELECT * FROM pgmq_public.create_queue($1, true, $2, $3)`,
			queueName, DefaultRealtimeChannel, DefaultRealtimeEvent).Scan(&raw)
		if err != nil {
			return struct{}{}, classify(queueName, err)
		}
		return struct{}{}, nil
	})
	return err
}

type queueInfo struct {
	QueueName     string    `json:"queue_name"`
	CreatedAt     time.Time `json:"created_at"`
	IsPartitioned bool      `json:"is_partitioned"`
	IsUnlogged    bool      `json:"is_unlogged"`
}

func (c *Client) ListQueues(ctx context.Context) ([]queue.Info, error) {
	return internal.Retry(ctx, maxAttempts, func() ([]queue.Info, error) {
		var raw []byte
		err := c.pool.QueryRow(ctx, `SELECT * FROM pgmq_public.list_queues()`).Scan(&raw)
		if err != nil {
			return nil, classify("", err)
		}
		var infos []queueInfo
		if err := json.Unmarshal(raw, &infos); err != nil {
			return nil, queueerr.New(queueerr.Unknown, "", err)
		}
		out := make([]queue.Info, len(infos))
		for i, q := range infos {
			out[i] = queue.Info{
				Name:          q.QueueName,
				CreatedAt:     q.CreatedAt,
				IsPartitioned: q.IsPartitioned,
				IsUnlogged:    q.IsUnlogged,
			}
		}
		return out, nil
	})
}

// EnableQueueRealtime arranges broadcast of enqueue events for queue
// by (re)creating its trigger (schema.sql). It always passes
// DefaultRealtimeChannel and DefaultRealtimeEvent; a per-queue channel
// or event name cannot be set through this method.
func (c *Client) EnableQueueRealtime(ctx context.Context, queueName string) error {
	_, err := internal.Retry(ctx, maxAttempts, func() (struct{}, error) {
		var raw []byte
		err := c.pool.QueryRow(ctx, `SELECT * FROM pgmq_public.enable_queue_realtime($1, $2, $3)`,
			queueName, DefaultRealtimeChannel, DefaultRealtimeEvent).Scan(&raw)
		if err != nil {
			return struct{}{}, classify(queueName, err)
		}
		return struct{}{}, nil
	})
	return err
}

// DefaultRealtimeChannel and DefaultRealtimeEvent match the wire
// contract in schema.sql's aimq_notify trigger.
const (
	DefaultRealtimeChannel = "aimq:jobs"
	DefaultRealtimeEvent   = "job_enqueued"
)

var errNoAffectedRow = errors.New("message already archived, deleted, or unknown")

// classify maps a raw pgx/Postgres error onto a *queueerr.Error,
// wrapping structural/constraint failures (not found, invalid input)
// in backoff.Permanent so transport retries don't waste attempts on
// errors that will never succeed.
func classify(queueName string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return backoff.Permanent(queueerr.New(queueerr.NotFound, queueName, err))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table: queue was never created
			return backoff.Permanent(queueerr.New(queueerr.NotFound, queueName, err))
		case "22023", "23514": // invalid_parameter_value, check_violation
			return backoff.Permanent(queueerr.New(queueerr.Validation, queueName, err))
		}
	}
	// Anything else (connection reset, timeout, canceling statement)
	// is treated as transient and left eligible for retry.
	return queueerr.New(queueerr.Transport, queueName, err)
}
