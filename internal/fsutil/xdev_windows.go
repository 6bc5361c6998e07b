//go:build windows

package fsutil

import (
	stderrors "errors"

	"golang.org/x/sys/windows"
)

// IsCrossDevice reports whether err is the "not same device" failure returned
// when a rename or link spans volumes.
func IsCrossDevice(err error) bool {
	return stderrors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
