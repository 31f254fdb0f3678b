//go:build windows

package report

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/windows"
)

// isLocked also matches the sharing and lock violations Windows reports when
// another program, usually a spreadsheet application, holds the file open.
func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}
