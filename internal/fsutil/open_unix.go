//go:build !windows

package fsutil

import (
	stderrors "errors"
	"os"

	"golang.org/x/sys/unix"
)

// OpenNoFollow opens path with O_NOFOLLOW so a symlink in the final path component
// is refused instead of followed. O_CLOEXEC prevents FD leaks across exec.
//
// Note: O_NOFOLLOW only protects the final component. Directory components are the
// caller's concern (plan files must sit directly in an allowed directory).
func OpenNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := unix.Open(path, flag|unix.O_NOFOLLOW|unix.O_CLOEXEC, uint32(perm.Perm()))
	if err != nil {
		if stderrors.Is(err, unix.ELOOP) {
			return nil, &os.PathError{Op: "open", Path: path, Err: ErrSymlink}
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

// OpenReadNoFollow opens path read-only with O_NOFOLLOW.
func OpenReadNoFollow(path string) (*os.File, error) {
	return OpenNoFollow(path, os.O_RDONLY, 0)
}
