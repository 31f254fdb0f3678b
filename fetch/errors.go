package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a failed download. It doubles as the metrics label.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindConnection  Kind = "connection"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindServer      Kind = "server"
	KindOther       Kind = "other"
	KindUnknown     Kind = "unknown"
)

// Transient reports whether a download failing this way is worth retrying.
func (k Kind) Transient() bool {
	switch k {
	case KindTimeout, KindConnection, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

// Error is a classified download failure. Status is the HTTP status when the
// server answered.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (http %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, KindOther for
// unclassified errors and KindUnknown for nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindOther
}
