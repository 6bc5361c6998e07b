//go:build linux

package fsutil

import (
	stderrors "errors"
	"os"

	"golang.org/x/sys/unix"
)

// RenameNoReplace renames oldpath to newpath, failing with an error matching
// fs.ErrExist if newpath already exists. A cross-device rename fails with an
// error for which IsCrossDevice reports true.
func RenameNoReplace(oldpath, newpath string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldpath, unix.AT_FDCWD, newpath, unix.RENAME_NOREPLACE)
	if err == nil {
		return nil
	}
	// Kernels before 3.15 and some filesystems (older NFS, overlayfs lower dirs)
	// do not implement RENAME_NOREPLACE.
	if stderrors.Is(err, unix.EINVAL) || stderrors.Is(err, unix.ENOSYS) || stderrors.Is(err, unix.ENOTSUP) {
		return linkRename(oldpath, newpath)
	}
	return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
}
