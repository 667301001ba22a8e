package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"

	"provisioncore/pkg/domain"
)

// SQLite extended result codes for constraint violations.
const (
	sqliteConstraint           = 19
	sqliteConstraintForeignKey = 787
)

// Postgres SQLSTATE classes for integrity violations.
const (
	pgForeignKeyViolation = "23503"
	pgIntegrityClass      = "23"
)

// Classify maps a backend error onto the domain taxonomy: foreign-key
// failures become referential errors, other integrity failures become
// constraint errors, anything else is wrapped as-is.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch {
		case se.Code() == sqliteConstraintForeignKey:
			return &domain.ReferentialError{Op: op, Err: err}
		case se.Code()&0xff == sqliteConstraint:
			return &domain.ConstraintError{Op: op, Err: err}
		}
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch {
		case pe.Code == pgForeignKeyViolation:
			return &domain.ReferentialError{Op: op, Err: err}
		case len(pe.Code) >= 2 && pe.Code[:2] == pgIntegrityClass:
			return &domain.ConstraintError{Op: op, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
