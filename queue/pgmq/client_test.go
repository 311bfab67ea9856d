package pgmq

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aimq-dev/aimq/queueerr"
)

func TestClassifyNoRowsIsNotFound(t *testing.T) {
	err := classify("emails", pgx.ErrNoRows)
	if !queueerr.Is(err, queueerr.NotFound) {
		t.Fatalf("classify(ErrNoRows) = %v, want NotFound", err)
	}
}

func TestClassifyUndefinedTableIsNotFound(t *testing.T) {
	err := classify("emails", &pgconn.PgError{Code: "42P01", Message: "relation does not exist"})
	if !queueerr.Is(err, queueerr.NotFound) {
		t.Fatalf("classify(42P01) = %v, want NotFound", err)
	}
}

func TestClassifyCheckViolationIsValidation(t *testing.T) {
	err := classify("emails", &pgconn.PgError{Code: "23514", Message: "check violation"})
	if !queueerr.Is(err, queueerr.Validation) {
		t.Fatalf("classify(23514) = %v, want Validation", err)
	}
}

func TestClassifyUnknownErrorIsTransport(t *testing.T) {
	err := classify("emails", errors.New("connection reset by peer"))
	if !queueerr.Is(err, queueerr.Transport) {
		t.Fatalf("classify(generic) = %v, want Transport", err)
	}
}
