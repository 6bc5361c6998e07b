// Package mover relocates DUPLICATE plan entries into a quarantine directory.
// It never deletes data and never overwrites an existing file.
package mover

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hpungsan/dupsweep/internal/fsutil"
	"github.com/hpungsan/dupsweep/internal/plan"
)

// Status of a single move.
type Status string

const (
	StatusMoved   Status = "moved"
	StatusPlanned Status = "planned" // dry run
	StatusFailed  Status = "failed"
)

// Failure reasons.
const (
	ReasonSourceMissing  = "source_missing"
	ReasonNotRegular     = "not_regular_file"
	ReasonMkdir          = "mkdir_failed"
	ReasonNoFreeName     = "no_free_name"
	ReasonMoveFailed     = "move_failed"
	ReasonCopyFailed     = "copy_failed"
	ReasonSourceNotFreed = "source_not_removed"
)

// renameNoReplace is swapped in tests to simulate a cross-device rename.
var renameNoReplace = fsutil.RenameNoReplace

// maxSuffix bounds the _N search for a free destination name.
const maxSuffix = 10000

// Outcome records what happened to one DUPLICATE entry.
type Outcome struct {
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	Size        int64  `json:"size"`
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
	// Flattened is set when the source was outside the source root and was
	// placed directly under the quarantine root by base name.
	Flattened bool `json:"flattened,omitempty"`
}

// Result accumulates outcomes for a batch. A dry run only counts Planned and
// BytesPlanned; Moved and BytesFreed stay zero.
type Result struct {
	Moved        int       `json:"moved"`
	Planned      int       `json:"planned,omitempty"`
	Failed       int       `json:"failed"`
	BytesFreed   int64     `json:"bytes_freed"`
	BytesPlanned int64     `json:"bytes_planned,omitempty"`
	Outcomes     []Outcome `json:"outcomes"`
}

// Options tunes Apply.
type Options struct {
	// DryRun computes destinations without touching the filesystem.
	DryRun bool
	// OnOutcome, if set, is called after each entry is processed.
	OnOutcome func(Outcome)
}

// Apply moves every DUPLICATE entry to quarantineRoot, keeping its path
// relative to sourceRoot. KEEP entries are ignored. Each failure is recorded
// and the batch continues. BytesFreed sums the plan sizes of moved entries.
func Apply(entries []plan.Entry, quarantineRoot, sourceRoot string, opts Options) Result {
	m := &mover{
		quarantine: filepath.Clean(quarantineRoot),
		source:     filepath.Clean(sourceRoot),
		dryRun:     opts.DryRun,
		reserved:   make(map[string]bool),
	}

	var res Result
	for _, e := range entries {
		if e.Action != plan.ActionDuplicate {
			continue
		}
		out := m.move(e)
		switch out.Status {
		case StatusMoved:
			res.Moved++
			res.BytesFreed += e.Size
		case StatusPlanned:
			res.Planned++
			res.BytesPlanned += e.Size
		default:
			res.Failed++
		}
		res.Outcomes = append(res.Outcomes, out)
		if opts.OnOutcome != nil {
			opts.OnOutcome(out)
		}
	}
	return res
}

type mover struct {
	quarantine string
	source     string
	dryRun     bool
	// names handed out during a dry run, which never reach the disk
	reserved map[string]bool
}

func (m *mover) move(e plan.Entry) Outcome {
	out := Outcome{Source: e.Path, Size: e.Size}
	fail := func(reason string, err error) Outcome {
		out.Status = StatusFailed
		out.Reason = reason
		if err != nil {
			out.Error = err.Error()
		}
		return out
	}

	info, err := os.Lstat(e.Path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return fail(ReasonSourceMissing, err)
		}
		return fail(ReasonMoveFailed, err)
	}
	if !info.Mode().IsRegular() {
		return fail(ReasonNotRegular, fmt.Errorf("%s is %s", e.Path, info.Mode().Type()))
	}

	dest, flattened := Destination(e.Path, m.quarantine, m.source)
	out.Flattened = flattened

	if m.dryRun {
		name, err := m.reserve(dest)
		if err != nil {
			return fail(ReasonNoFreeName, err)
		}
		out.Destination = name
		out.Status = StatusPlanned
		return out
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fail(ReasonMkdir, err)
	}

	final, reason, err := m.place(e.Path, dest, info)
	if err != nil {
		out.Destination = final
		return fail(reason, err)
	}
	out.Destination = final
	out.Status = StatusMoved
	return out
}

// Destination maps source into quarantineRoot. A source under sourceRoot keeps
// its relative path; anything else falls back to its base name, reported by
// flattened.
func Destination(source, quarantineRoot, sourceRoot string) (dest string, flattened bool) {
	rel, err := filepath.Rel(sourceRoot, source)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return filepath.Join(quarantineRoot, filepath.Base(source)), true
	}
	return filepath.Join(quarantineRoot, rel), false
}

// Candidate returns the n-th alternative name for path: n == 0 is path itself,
// otherwise "_n" is inserted before the extension (report.txt -> report_1.txt).
// A leading dot does not start an extension (.bashrc -> .bashrc_1).
func Candidate(path string, n int) string {
	if n == 0 {
		return path
	}
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	if ext == base {
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
}

// place moves src to the first free candidate of dest. The final step never
// replaces an existing file, so a name taken between the check and the move
// just advances to the next candidate.
func (m *mover) place(src, dest string, info fs.FileInfo) (string, string, error) {
	for n := 0; n < maxSuffix; n++ {
		cand := Candidate(dest, n)
		if _, err := os.Lstat(cand); err == nil {
			continue
		}

		err := renameNoReplace(src, cand)
		switch {
		case err == nil:
			return cand, "", nil
		case stderrors.Is(err, fs.ErrExist):
			continue
		case fsutil.IsCrossDevice(err):
			return m.copyAcross(src, dest, n, info)
		case stderrors.Is(err, fs.ErrNotExist):
			return cand, ReasonSourceMissing, err
		default:
			return cand, ReasonMoveFailed, err
		}
	}
	return "", ReasonNoFreeName, fmt.Errorf("no free name for %s after %d attempts", dest, maxSuffix)
}

// copyAcross moves src to another filesystem. The content is written to a
// temp file beside the destination, synced, then linked into place without
// replacing anything. The source is removed only after that succeeds.
func (m *mover) copyAcross(src, dest string, start int, info fs.FileInfo) (string, string, error) {
	tmp, err := copyToTemp(src, filepath.Dir(dest), info)
	if err != nil {
		return dest, ReasonCopyFailed, err
	}
	defer os.Remove(tmp) // no-op once renamed

	for n := start; n < maxSuffix; n++ {
		cand := Candidate(dest, n)
		if _, err := os.Lstat(cand); err == nil {
			continue
		}
		err := renameNoReplace(tmp, cand)
		if stderrors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return cand, ReasonCopyFailed, err
		}

		if err := os.Remove(src); err != nil {
			// Do not leave the file in both places.
			_ = os.Remove(cand)
			return cand, ReasonSourceNotFreed, err
		}
		return cand, "", nil
	}
	return "", ReasonNoFreeName, fmt.Errorf("no free name for %s after %d attempts", dest, maxSuffix)
}

func copyToTemp(src, dir string, info fs.FileInfo) (tmpPath string, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("copying `%s`: %w", src, err)
		}
	}()

	in, err := fsutil.OpenReadNoFollow(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, ".dupsweep-*.tmp")
	if err != nil {
		return "", err
	}
	tmpPath = out.Name()
	cleanup := func() {
		out.Close()
		os.Remove(tmpPath)
	}

	if _, err := io.Copy(out, in); err != nil {
		cleanup()
		return "", err
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		cleanup()
		return "", err
	}
	if err := out.Sync(); err != nil {
		cleanup()
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	_ = os.Chtimes(tmpPath, info.ModTime(), info.ModTime())
	return tmpPath, nil
}

// reserve picks the first candidate that is free on disk and not already
// handed out in this dry run.
func (m *mover) reserve(dest string) (string, error) {
	for n := 0; n < maxSuffix; n++ {
		cand := Candidate(dest, n)
		if m.reserved[cand] {
			continue
		}
		if _, err := os.Lstat(cand); err == nil {
			continue
		}
		m.reserved[cand] = true
		return cand, nil
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", dest, maxSuffix)
}
