//go:build !windows

package report

import (
	"errors"
	"io/fs"
)

func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}
