// Package fsutil holds the few filesystem primitives the rest of dupsweep needs
// beyond package os: symlink-refusing opens and renames that never replace an
// existing destination.
package fsutil

import (
	stderrors "errors"
	"io/fs"
	"os"
)

// ErrSymlink is returned (wrapped in *os.PathError) when an open refuses a symlink.
var ErrSymlink = stderrors.New("refusing to follow symlink")

// linkRename moves oldpath to newpath by hard-linking then unlinking the source.
// link(2) fails with EEXIST instead of replacing, which gives no-replace
// semantics on every platform with hard links.
func linkRename(oldpath, newpath string) error {
	err := os.Link(oldpath, newpath)
	if err == nil {
		if err := os.Remove(oldpath); err != nil {
			// Leave the tree as it was: the source is still in place.
			_ = os.Remove(newpath)
			return err
		}
		return nil
	}
	if stderrors.Is(err, fs.ErrExist) || IsCrossDevice(err) {
		return err
	}

	// Filesystem without hard link support (FAT, some network mounts).
	if _, statErr := os.Lstat(newpath); statErr == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	}
	return os.Rename(oldpath, newpath)
}
