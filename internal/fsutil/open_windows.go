//go:build windows

package fsutil

import (
	"os"
)

// OpenNoFollow opens a file, refusing symlinks.
// On Windows, O_NOFOLLOW is not available, so the final component is checked with
// Lstat first. Creating symlinks needs elevated privileges there, which narrows the
// window this leaves open.
func OpenNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, &os.PathError{Op: "open", Path: path, Err: ErrSymlink}
	}
	return os.OpenFile(path, flag, perm)
}

// OpenReadNoFollow opens a file for reading. See OpenNoFollow for details.
func OpenReadNoFollow(path string) (*os.File, error) {
	return OpenNoFollow(path, os.O_RDONLY, 0)
}
