package embedded

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createMessagesTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*messageModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createQueuesTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*queueModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createReadIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*messageModel)(nil)).
		Index("idx_aimq_messages_read").
		Column("queue", "state", "visible_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func initDB(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := createMessagesTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createQueuesTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createReadIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

// InitDB creates the embedded backend's schema (messages table, queue
// registry, and the index Read relies on) inside a single transaction.
// InitDB is idempotent.
func InitDB(ctx context.Context, db *bun.DB) error {
	return initDB(ctx, db)
}
