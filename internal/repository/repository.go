package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicateKey reports a unique constraint violation.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrVersionConflict reports that a row changed between read and write.
var ErrVersionConflict = errors.New("version conflict")

const uniqueViolation = "23505"

func translateUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return err
}

const maxIDAttempts = 5

// insertWithFreshID runs query with a new ShortID handed to assign until a
// row lands. query must end in ON CONFLICT DO NOTHING on the id column, so a
// collision neither errors nor aborts an enclosing transaction.
func insertWithFreshID(ctx context.Context, exec sqlx.ExtContext, query string, arg interface{}, assign func(string)) error {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		assign(ShortID())
		inserted, err := namedInsert(ctx, exec, query, arg)
		if err != nil {
			return err
		}
		if inserted {
			return nil
		}
	}
	return ErrDuplicateKey
}

func namedInsert(ctx context.Context, exec sqlx.ExtContext, query string, arg interface{}) (bool, error) {
	res, err := sqlx.NamedExecContext(ctx, exec, query, arg)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ShortID returns an 8 character upper-case identifier derived from a random UUID.
// Application, objection and history ids use this shape.
func ShortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
