// Package job defines the value object the worker dispatches to
// pipelines: a single PGMQ message materialized for execution.
package job

import (
	"errors"
	"time"

	"github.com/aimq-dev/aimq/queueerr"
	"github.com/aimq-dev/aimq/value"
)

// Job is a single queue message materialized for execution.
//
// Job instances are snapshots produced by a queue.Client's Read/Pop:
// mutating a Job's fields does not change queue state. A Job is owned
// by the queue processor for the duration of execution and is
// destroyed (from the worker's point of view) when archived or
// deleted.
type Job struct {
	// MessageID is unique within QueueName, assigned by PGMQ on send.
	MessageID int64
	// QueueName is the originating queue.
	QueueName string
	// ReadCount is the number of times PGMQ has delivered this
	// message, including this delivery.
	ReadCount int
	// EnqueuedAt is the absolute timestamp of first enqueue.
	EnqueuedAt time.Time
	// VisibleAt is the timestamp after which PGMQ may redeliver this
	// message if it is not finalized.
	VisibleAt time.Time
	// Payload is the job's data, always an Object at the top level.
	Payload value.Object
	// Tags are static strings attached by the queue processor at read
	// time, from the owning Descriptor's configuration.
	Tags []string
}

// IsExpired reports whether now is at or past the job's visibility
// deadline, meaning PGMQ is free to redeliver it to another reader.
func (j *Job) IsExpired(now time.Time) bool {
	return !now.Before(j.VisibleAt)
}

// Original returns the side-channel metadata mapping exposed to
// pipelines via the original(key) primitive: queue, message_id,
// read_count, enqueued_at, and tags.
func (j *Job) Original() value.Object {
	tags := make([]value.Value, len(j.Tags))
	for i, t := range j.Tags {
		tags[i] = value.String(t)
	}
	return value.Object{
		"queue":       value.String(j.QueueName),
		"message_id":  value.Number(float64(j.MessageID)),
		"read_count":  value.Number(float64(j.ReadCount)),
		"enqueued_at": value.String(j.EnqueuedAt.UTC().Format(time.RFC3339Nano)),
		"tags":        value.Array(tags...),
	}
}

// Row is the raw shape returned by a PGMQ read/pop RPC:
// {msg_id, read_ct, enqueued_at, vt, message}.
type Row struct {
	MsgID      int64
	ReadCount  int
	EnqueuedAt time.Time
	VT         time.Time
	Message    []byte
}

var errMissingMsgID = errors.New("row missing msg_id")

// FromRow parses an RPC row into a Job bound to queue. It fails with a
// queueerr.Validation error if Message is not a JSON object or MsgID
// is absent (zero or negative; PGMQ message ids start at 1).
func FromRow(queue string, row Row, tags []string) (*Job, error) {
	if row.MsgID <= 0 {
		return nil, queueerr.New(queueerr.Validation, queue, errMissingMsgID)
	}
	payload, err := value.ParseObject(row.Message)
	if err != nil {
		return nil, queueerr.New(queueerr.Validation, queue, err)
	}
	return &Job{
		MessageID:  row.MsgID,
		QueueName:  queue,
		ReadCount:  row.ReadCount,
		EnqueuedAt: row.EnqueuedAt,
		VisibleAt:  row.VT,
		Payload:    payload,
		Tags:       tags,
	}, nil
}
