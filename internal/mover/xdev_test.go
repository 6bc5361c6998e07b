//go:build !windows

package mover

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/hpungsan/dupsweep/internal/plan"
)

// crossDevice makes renames of the given sources fail with EXDEV, the way a
// rename between filesystems does. Other renames go through unchanged.
func crossDevice(t *testing.T, sources ...string) {
	t.Helper()
	set := make(map[string]bool)
	for _, s := range sources {
		set[s] = true
	}
	orig := renameNoReplace
	renameNoReplace = func(oldpath, newpath string) error {
		if set[oldpath] {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
		}
		return orig(oldpath, newpath)
	}
	t.Cleanup(func() { renameNoReplace = orig })
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".dupsweep-*.tmp"))
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	return matches
}

func TestApply_CrossDevice(t *testing.T) {
	src := t.TempDir()
	q := filepath.Join(t.TempDir(), "q")
	source := filepath.Join(src, "sub", "a.txt")
	writeFile(t, source, "payload")
	writeFile(t, filepath.Join(q, "sub", "a.txt"), "existing")
	if err := os.Chmod(source, 0640); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}
	crossDevice(t, source)

	res := Apply([]plan.Entry{dup(source, 7)}, q, src, Options{})

	if res.Moved != 1 || res.Failed != 0 || res.BytesFreed != 7 {
		t.Fatalf("Result = %+v, want moved 1 freed 7", res)
	}
	want := filepath.Join(q, "sub", "a_1.txt")
	if res.Outcomes[0].Destination != want {
		t.Errorf("Destination = %q, want %q", res.Outcomes[0].Destination, want)
	}
	if got := readFile(t, want); got != "payload" {
		t.Errorf("moved content = %q, want payload", got)
	}
	if got := readFile(t, filepath.Join(q, "sub", "a.txt")); got != "existing" {
		t.Errorf("existing file overwritten: %q", got)
	}
	if exists(source) {
		t.Error("source still present after cross-device move")
	}
	info, err := os.Stat(want)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("moved file mode = %v, want 0640", info.Mode().Perm())
	}
	if tmp := tempFiles(t, filepath.Join(q, "sub")); len(tmp) != 0 {
		t.Errorf("temp files left behind: %v", tmp)
	}
}

func TestApply_CrossDeviceLinkFails(t *testing.T) {
	src := t.TempDir()
	q := filepath.Join(t.TempDir(), "q")
	source := filepath.Join(src, "a.txt")
	writeFile(t, source, "payload")

	// Every rename fails: the source crosses devices and the temp file cannot be placed.
	orig := renameNoReplace
	renameNoReplace = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	t.Cleanup(func() { renameNoReplace = orig })

	res := Apply([]plan.Entry{dup(source, 7)}, q, src, Options{})

	if res.Moved != 0 || res.Failed != 1 {
		t.Fatalf("Result = %+v, want 1 failure", res)
	}
	if res.Outcomes[0].Reason != ReasonCopyFailed {
		t.Errorf("Reason = %q, want %q", res.Outcomes[0].Reason, ReasonCopyFailed)
	}
	if got := readFile(t, source); got != "payload" {
		t.Errorf("source content = %q, want it untouched", got)
	}
	if tmp := tempFiles(t, q); len(tmp) != 0 {
		t.Errorf("temp files left behind: %v", tmp)
	}
	if exists(filepath.Join(q, "a.txt")) {
		t.Error("destination created although the move failed")
	}
}
