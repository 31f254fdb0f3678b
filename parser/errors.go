package parser

import "fmt"

// ParseError reports a cell that looked like a known format but could not be
// converted.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MissingValueError reports an empty cell in a column with no default.
type MissingValueError struct {
	Role Role
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("missing value for %s column", e.Role)
}
