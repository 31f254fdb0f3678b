package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/phone-reviews/parser"
)

// MissingColumnError is returned when a required header is not present.
type MissingColumnError struct {
	Relation string
	Columns  []string
	Header   []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s source is missing columns %s (header: %s)",
		e.Relation, strings.Join(e.Columns, ", "), strings.Join(e.Header, ", "))
}

// RowError pins a failure to a spreadsheet row (the header is row 1) and
// column. Any RowError aborts the whole batch.
type RowError struct {
	Relation string
	Row      int
	Column   string
	Err      error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s row %d: %v", e.Relation, e.Row, e.Err)
	}
	return fmt.Sprintf("%s row %d column %s: %v", e.Relation, e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ErrDuplicateKey reports a repeated primary key inside one source.
var ErrDuplicateKey = errors.New("duplicate key")

// reasonLabel classifies a row failure for metrics.
func reasonLabel(err error) string {
	var parseErr *parser.ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	var missing *parser.MissingValueError
	if errors.As(err, &missing) {
		return "missing_value"
	}
	var coerce *CoerceError
	if errors.As(err, &coerce) {
		return "type"
	}
	if errors.Is(err, ErrDuplicateKey) {
		return "duplicate_key"
	}
	return "validation"
}
