package embedded

import (
	"context"
	"time"

	"github.com/aimq-dev/aimq/queueerr"
)

// PurgeArchived permanently removes archived rows, optionally
// restricted to ones archived no later than before. It is the
// embedded backend's retention mechanism, adapted from the teacher's
// Cleaner: unlike production PGMQ, which exposes no purge-archive RPC
// in the spec's contract, the embedded backend owns its schema and can
// legitimately support one.
//
// PurgeArchived never touches Active rows.
func (c *Client) PurgeArchived(ctx context.Context, before *time.Time) (int64, error) {
	query := c.db.NewDelete().
		Model((*messageModel)(nil)).
		Where("state = ?", Archived)
	if before != nil {
		query = query.Where("visible_at <= ?", *before)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return 0, queueerr.New(queueerr.Transport, "", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, queueerr.New(queueerr.Transport, "", err)
	}
	return rows, nil
}
