// Package embedded implements queue.Client on top of bun and
// modernc.org/sqlite, adapted from the teacher's SQL-backed Puller,
// Pusher, and Observer. It is used by cmd/aimq when no Postgres
// connection is configured: the Job/archive semantics (visibility
// timeouts, atomic reads, archive-vs-delete) are reproduced without
// requiring the PGMQ extension.
package embedded

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/aimq-dev/aimq/job"
	"github.com/aimq-dev/aimq/queue"
	"github.com/aimq-dev/aimq/queueerr"
	"github.com/aimq-dev/aimq/value"
)

// Client is the embedded, single-process queue.Client backend.
type Client struct {
	db *bun.DB
}

// Open opens a sqlite database at dsn (use "file::memory:?cache=shared"
// for an ephemeral instance) and initializes its schema.
func Open(ctx context.Context, dsn string) (*Client, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, queueerr.New(queueerr.Transport, "", err)
	}
	sqlDB.SetMaxOpenConns(1) // sqlite allows a single writer
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := InitDB(ctx, db); err != nil {
		return nil, queueerr.New(queueerr.Transport, "", err)
	}
	return &Client{db: db}, nil
}

// New wraps an already-initialized *bun.DB. The caller is responsible
// for having run InitDB first.
func New(db *bun.DB) *Client {
	return &Client{db: db}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Send(ctx context.Context, queueName string, payload value.Object, delay time.Duration) (int64, error) {
	ids, err := c.SendBatch(ctx, queueName, []value.Object{payload}, delay)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

func (c *Client) SendBatch(ctx context.Context, queueName string, payloads []value.Object, delay time.Duration) ([]int64, error) {
	now := time.Now()
	visible := now.Add(delay)
	models := make([]*messageModel, len(payloads))
	for i, p := range payloads {
		raw, err := value.FromObject(p).MarshalJSON()
		if err != nil {
			return nil, queueerr.New(queueerr.Validation, queueName, err)
		}
		models[i] = &messageModel{
			Queue:      queueName,
			State:      Active,
			EnqueuedAt: now,
			VisibleAt:  visible,
			Payload:    raw,
		}
	}
	if _, err := c.db.NewInsert().Model(&models).Exec(ctx); err != nil {
		return nil, queueerr.New(queueerr.Transport, queueName, err)
	}
	ids := make([]int64, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return ids, nil
}

// Read atomically selects up to batch active, visible rows and pushes
// their visibility deadline out by vt, the embedded equivalent of
// PGMQ's read RPC. It is implemented with the same UPDATE ... WHERE id
// IN (subquery) RETURNING technique the teacher's Puller.Pull used for
// Pending -> Processing transitions.
func (c *Client) Read(ctx context.Context, queueName string, batch int, vt time.Duration) ([]job.Row, error) {
	now := time.Now()
	newVisible := now.Add(vt)
	subQuery := c.db.NewSelect().
		Model((*messageModel)(nil)).
		Column("id").
		Where("queue = ?", queueName).
		Where("state = ?", Active).
		Where("visible_at <= ?", now).
		Order("id ASC").
		Limit(batch)

	var rows []*messageModel
	err := c.db.NewUpdate().
		Model((*messageModel)(nil)).
		Set("visible_at = ?", newVisible).
		Set("read_count = read_count + 1").
		Where("id IN (?)", subQuery).
		Returning("*").
		Scan(ctx, &rows)
	if err != nil {
		return nil, queueerr.New(queueerr.Transport, queueName, err)
	}

	out := make([]job.Row, len(rows))
	for i, r := range rows {
		out[i] = job.Row{
			MsgID:      r.ID,
			ReadCount:  r.ReadCount,
			EnqueuedAt: r.EnqueuedAt,
			VT:         r.VisibleAt,
			Message:    r.Payload,
		}
	}
	return out, nil
}

// Pop atomically deletes and returns a single active row, used by
// tooling that wants pgmq_public.pop semantics without the
// read/finalize protocol.
func (c *Client) Pop(ctx context.Context, queueName string) (*job.Row, bool, error) {
	subQuery := c.db.NewSelect().
		Model((*messageModel)(nil)).
		Column("id").
		Where("queue = ?", queueName).
		Where("state = ?", Active).
		Order("id ASC").
		Limit(1)

	var rows []*messageModel
	err := c.db.NewDelete().
		Model((*messageModel)(nil)).
		Where("id IN (?)", subQuery).
		Returning("*").
		Scan(ctx, &rows)
	if err != nil {
		return nil, false, queueerr.New(queueerr.Transport, queueName, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	r := rows[0]
	return &job.Row{
		MsgID:      r.ID,
		ReadCount:  r.ReadCount,
		EnqueuedAt: r.EnqueuedAt,
		VT:         r.VisibleAt,
		Message:    r.Payload,
	}, true, nil
}

func (c *Client) Archive(ctx context.Context, queueName string, messageID int64) error {
	res, err := c.db.NewUpdate().
		Model((*messageModel)(nil)).
		Set("state = ?", Archived).
		// An archived row's visible_at records when it was archived;
		// PurgeArchived filters on it.
		Set("visible_at = ?", time.Now()).
		Where("id = ?", messageID).
		Where("queue = ?", queueName).
		Where("state = ?", Active).
		Exec(ctx)
	if err != nil {
		return queueerr.NewForMessage(queueerr.Transport, queueName, messageID, err)
	}
	if !isAffected(res) {
		return queueerr.NewForMessage(queueerr.Conflict, queueName, messageID, errAlreadyFinalized)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, queueName string, messageID int64) error {
	res, err := c.db.NewDelete().
		Model((*messageModel)(nil)).
		Where("id = ?", messageID).
		Where("queue = ?", queueName).
		Where("state = ?", Active).
		Exec(ctx)
	if err != nil {
		return queueerr.NewForMessage(queueerr.Transport, queueName, messageID, err)
	}
	if !isAffected(res) {
		return queueerr.NewForMessage(queueerr.Conflict, queueName, messageID, errAlreadyFinalized)
	}
	return nil
}

func (c *Client) CreateQueue(ctx context.Context, queueName string) error {
	_, err := c.db.NewInsert().
		Model(&queueModel{Name: queueName, CreatedAt: time.Now()}).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return queueerr.New(queueerr.Transport, queueName, err)
	}
	return nil
}

func (c *Client) ListQueues(ctx context.Context) ([]queue.Info, error) {
	var rows []*queueModel
	if err := c.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, queueerr.New(queueerr.Transport, "", err)
	}
	out := make([]queue.Info, len(rows))
	for i, r := range rows {
		out[i] = queue.Info{Name: r.Name, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

// EnableQueueRealtime is a no-op: the embedded backend has no
// LISTEN/NOTIFY equivalent, so fibers bound to it always fall back to
// idle-timer polling.
func (c *Client) EnableQueueRealtime(context.Context, string) error {
	return nil
}

var errAlreadyFinalized = errors.New("message already archived or deleted")

func isAffected(res sql.Result) bool {
	rows, err := res.RowsAffected()
	if err != nil {
		return true
	}
	return rows != 0
}
