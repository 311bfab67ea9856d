package embedded_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/aimq-dev/aimq/queue/embedded"

	_ "modernc.org/sqlite"
)

func newTestClient(t *testing.T) *embedded.Client {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := embedded.InitDB(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return embedded.New(db)
}
