//go:build !linux

package fsutil

// RenameNoReplace renames oldpath to newpath, failing with an error matching
// fs.ErrExist if newpath already exists. A cross-device rename fails with an
// error for which IsCrossDevice reports true.
func RenameNoReplace(oldpath, newpath string) error {
	return linkRename(oldpath, newpath)
}
