package embedded

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// RowState tracks whether a message row is still live or has been
// archived, mirroring PGMQ's split between a queue's active table and
// its archive table without requiring a table per queue.
type RowState uint8

const (
	Active RowState = iota
	Archived
)

func (s RowState) String() string {
	switch s {
	case Active:
		return "active"
	case Archived:
		return "archived"
	default:
		return "unknown"
	}
}

// ParseRowState parses the canonical string form of a RowState.
func ParseRowState(s string) (RowState, error) {
	switch s {
	case "active":
		return Active, nil
	case "archived":
		return Archived, nil
	default:
		return 0, fmt.Errorf("embedded: unknown row state %q", s)
	}
}

func (s RowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RowState) UnmarshalText(text []byte) error {
	v, err := ParseRowState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// messageModel is a single row of the embedded backend's shared
// message table, covering every queue.
type messageModel struct {
	bun.BaseModel `bun:"table:aimq_messages"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Queue      string    `bun:"queue,notnull"`
	State      RowState  `bun:"state,notnull,default:0"`
	ReadCount  int       `bun:"read_count,notnull,default:0"`
	EnqueuedAt time.Time `bun:"enqueued_at,notnull"`
	VisibleAt  time.Time `bun:"visible_at,notnull"`
	Payload    []byte    `bun:"payload,type:blob"`
}

// queueModel records a provisioned queue name, so ListQueues has
// something to report even for queues with no messages yet.
type queueModel struct {
	bun.BaseModel `bun:"table:aimq_queues"`

	Name      string    `bun:"name,pk"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
