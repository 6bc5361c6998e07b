// Package dedup turns size-colliding files into confirmed duplicate sets by
// hashing every candidate and regrouping on digest.
package dedup

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/hpungsan/dupsweep/internal/scan"
)

// DuplicateSet is a group of two or more files with identical size and digest.
//
// Files are in discovery order. Files[0] is the one kept; this follows the
// scanner's lexical walk and says nothing about which copy is the original.
type DuplicateSet struct {
	Digest string            `json:"digest"`
	Size   int64             `json:"size"`
	Files  []scan.FileRecord `json:"files"`
}

// Keep returns the member that stays in place.
func (s DuplicateSet) Keep() scan.FileRecord { return s.Files[0] }

// Duplicates returns the members that may be moved to quarantine.
func (s DuplicateSet) Duplicates() []scan.FileRecord { return s.Files[1:] }

// Wasted is the number of bytes held by the duplicate members.
func (s DuplicateSet) Wasted() int64 { return s.Size * int64(len(s.Files)-1) }

// GroupStats counts hashing outcomes.
type GroupStats struct {
	Hashed     int `json:"hashed"`
	HashFailed int `json:"hash_failed"`
}

// Group hashes every member of every size group and returns the digest groups
// with at least two members, ordered by the discovery index of their first
// member. A file that fails to hash is dropped without affecting the others.
func Group(groups []scan.SizeGroup, hasher scan.Hasher, progress Progress) ([]DuplicateSet, GroupStats) {
	if progress == nil {
		progress = NopProgress{}
	}

	var stats GroupStats
	total := lo.SumBy(groups, func(g scan.SizeGroup) int { return len(g.Files) })
	progress.Hashing(total)

	var sets []DuplicateSet
	for _, g := range groups {
		hashed := make([]scan.FileRecord, 0, len(g.Files))
		for _, f := range g.Files {
			digest, err := hasher.Digest(f.Path)
			progress.Hashed(f.Path, err)
			if err != nil {
				stats.HashFailed++
				continue
			}
			stats.Hashed++
			f.Digest = digest
			hashed = append(hashed, f)
		}

		byDigest := lo.GroupBy(hashed, func(f scan.FileRecord) string { return f.Digest })
		for digest, files := range byDigest {
			if len(files) < 2 {
				continue
			}
			sets = append(sets, DuplicateSet{Digest: digest, Size: g.Size, Files: files})
		}
	}

	// Map iteration above is unordered.
	sort.Slice(sets, func(i, j int) bool { return sets[i].Files[0].Seq < sets[j].Files[0].Seq })
	progress.Grouped(sets)
	return sets, stats
}

// Result is the outcome of a full detection pass.
type Result struct {
	Root  string         `json:"root"`
	Sets  []DuplicateSet `json:"sets"`
	Scan  scan.Stats     `json:"scan"`
	Group GroupStats     `json:"group"`
}

// Files is the number of files across all sets.
func (r *Result) Files() int {
	return lo.SumBy(r.Sets, func(s DuplicateSet) int { return len(s.Files) })
}

// Wasted is the number of bytes held by duplicate members across all sets.
func (r *Result) Wasted() int64 {
	return lo.SumBy(r.Sets, func(s DuplicateSet) int64 { return s.Wasted() })
}

// Detect scans root, then hashes and groups the size collisions.
func Detect(root string, scanner *scan.Scanner, hasher scan.Hasher, progress Progress) (result *Result, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("detecting duplicates: %w", err)
		}
	}()

	if progress == nil {
		progress = NopProgress{}
	}

	abs, err := scan.ResolveRoot(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root `%s`: %w", root, err)
	}

	groups, scanStats, err := scanner.Scan(abs)
	if err != nil {
		return nil, err
	}
	progress.Scanned(scanStats)

	sets, groupStats := Group(groups, hasher, progress)
	return &Result{Root: abs, Sets: sets, Scan: scanStats, Group: groupStats}, nil
}
