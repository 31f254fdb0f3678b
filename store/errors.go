package store

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrConstraint matches every constraint violation via errors.Is.
var ErrConstraint = errors.New("constraint violation")

// ConstraintError describes a rejected write. Row is the 1-based position in
// the batch, 0 when the statement was not row based.
type ConstraintError struct {
	Table string
	Row   int
	Kind  string
	Err   error
}

func (e *ConstraintError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s row %d: %s constraint failed: %v", e.Table, e.Row, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s constraint failed: %v", e.Table, e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrConstraint) match.
func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraint
}

func classify(table string, row int, err error) error {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) || sqlErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("write %s: %w", table, err)
	}
	return &ConstraintError{Table: table, Row: row, Kind: constraintKind(sqlErr.Code()), Err: err}
}

func constraintKind(code int) string {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return "check"
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return "foreign_key"
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return "primary_key"
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return "not_null"
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return "unique"
	default:
		return "other"
	}
}
