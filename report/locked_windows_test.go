//go:build windows

package report

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/windows"
)

func TestLockedOrSharingViolation(t *testing.T) {
	for _, errno := range []error{windows.ERROR_SHARING_VIOLATION, windows.ERROR_LOCK_VIOLATION} {
		err := lockedOr("out.xlsx", &os.LinkError{Op: "rename", Old: "a", New: "out.xlsx", Err: errno})
		assert.ErrorIs(t, err, ErrOutputLocked)
		assert.Contains(t, err.Error(), "close the file in other programs and retry")
	}
}
