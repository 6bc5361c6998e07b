// Package scan walks a directory tree and groups regular files by byte size,
// the cheap first pass of duplicate detection.
package scan

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrRootNotDir is returned when the scan root exists but is not a directory.
var ErrRootNotDir = stderrors.New("not a directory")

// FileRecord is one regular file seen during a scan.
type FileRecord struct {
	Path    string `json:"path"` // absolute
	Size    int64  `json:"size"`
	ModTime int64  `json:"-"` // unix nanoseconds
	Seq     int    `json:"-"` // discovery index; lexical walk order
	Digest  string `json:"digest,omitempty"`
}

// SizeGroup holds files sharing one exact byte size, in discovery order.
type SizeGroup struct {
	Size  int64
	Files []FileRecord
}

// Stats counts what a scan saw.
type Stats struct {
	Files      int `json:"files"`      // regular files recorded
	Skipped    int `json:"skipped"`    // entries that could not be read
	Excluded   int `json:"excluded"`   // entries matched by an exclude pattern or below min size
	Candidates int `json:"candidates"` // files in size groups with ≥2 members
}

// Options tunes a Scanner.
type Options struct {
	// Exclude holds doublestar patterns matched against the slash-separated
	// path relative to the root. A matching directory is not descended into.
	Exclude []string
	// MinSize drops files smaller than this many bytes.
	MinSize int64
}

// Scanner finds size-colliding regular files under a root.
type Scanner struct {
	opts Options
}

// NewScanner validates the exclude patterns and returns a Scanner.
func NewScanner(opts Options) (*Scanner, error) {
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern: %q", p)
		}
	}
	if opts.MinSize < 0 {
		return nil, fmt.Errorf("min size must be non-negative, got %d", opts.MinSize)
	}
	return &Scanner{opts: opts}, nil
}

// Scan walks root in lexical order and returns the size groups that have at
// least two members, ordered by first discovery. Symlinks and special files
// are ignored. Per-entry read failures are counted in Stats.Skipped; only a
// missing or unreadable root is an error.
func (s *Scanner) Scan(root string) (groups []SizeGroup, stats Stats, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("scanning `%s`: %w", root, err)
		}
	}()

	abs, err := ResolveRoot(root)
	if err != nil {
		return nil, stats, err
	}

	bySize := make(map[int64]int) // size -> index into all
	var all []SizeGroup
	seq := 0

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			stats.Skipped++
			return nil
		}
		if path != abs && s.excluded(abs, path) {
			stats.Excluded++
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			stats.Skipped++
			return nil
		}
		if info.Size() < s.opts.MinSize {
			stats.Excluded++
			return nil
		}

		stats.Files++
		rec := FileRecord{Path: path, Size: info.Size(), ModTime: info.ModTime().UnixNano(), Seq: seq}
		seq++
		i, ok := bySize[rec.Size]
		if !ok {
			i = len(all)
			bySize[rec.Size] = i
			all = append(all, SizeGroup{Size: rec.Size})
		}
		all[i].Files = append(all[i].Files, rec)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	for _, g := range all {
		if len(g.Files) < 2 {
			continue
		}
		stats.Candidates += len(g.Files)
		groups = append(groups, g)
	}
	return groups, stats, nil
}

func (s *Scanner) excluded(root, path string) bool {
	if len(s.opts.Exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range s.opts.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// ResolveRoot makes root absolute and checks it is a directory. A symlinked
// root is resolved so the walk can descend into it.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if abs, err = filepath.EvalSymlinks(abs); err != nil {
			return "", err
		}
		if info, err = os.Stat(abs); err != nil {
			return "", err
		}
	}
	if !info.IsDir() {
		return "", ErrRootNotDir
	}
	return abs, nil
}
