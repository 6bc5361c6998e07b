//go:build !windows

package fsutil

import (
	stderrors "errors"

	"golang.org/x/sys/unix"
)

// IsCrossDevice reports whether err is the "invalid cross-device link" failure
// returned when a rename or link spans filesystems.
func IsCrossDevice(err error) bool {
	return stderrors.Is(err, unix.EXDEV)
}
