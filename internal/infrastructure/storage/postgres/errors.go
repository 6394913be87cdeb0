package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"stokado/internal/core/apperror"
)

// PostgreSQL error codes the ledger cares about.
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"
	pgCodeQueryCanceled        = "57014" // statement_timeout hit while waiting on a lock
	pgCodeUniqueViolation      = "23505"
)

// TranslateError maps low-level pg errors to the application taxonomy.
// Lock waits, deadlocks and serialization failures become retryable
// Contention; unique violations become Duplicate. AppErrors pass through
// untouched so business errors keep their codes across the tx boundary.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	if apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeSerializationFailure, pgCodeDeadlockDetected, pgCodeLockNotAvailable, pgCodeQueryCanceled:
			return apperror.NewContention(err)
		case pgCodeUniqueViolation:
			return apperror.NewDuplicate("record", pgErr.ConstraintName, "").WithCause(err)
		}
	}

	return err
}
