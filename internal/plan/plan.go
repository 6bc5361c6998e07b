// Package plan reads and writes the action list that carries keep/duplicate
// decisions from detection to the mover.
//
// One entry per line, fields separated by '|':
//
//	ACTION|PATH|SIZE|DIGEST
//
// ACTION is KEEP or DUPLICATE, PATH is absolute, SIZE is a base-10 byte count
// and DIGEST is the hex content digest. Each duplicate set is one KEEP line
// followed by its DUPLICATE lines, with a blank line between sets. Lines
// starting with '#' are comments; the header written by Encode uses them for
// "key: value" metadata.
package plan

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hpungsan/dupsweep/internal/dedup"
	"github.com/hpungsan/dupsweep/internal/scan"
)

// Action is the decision recorded for one file.
type Action string

const (
	ActionKeep      Action = "KEEP"
	ActionDuplicate Action = "DUPLICATE"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionKeep || a == ActionDuplicate
}

// ErrUnrepresentable is returned by Encode for a path containing '|' or a line break.
var ErrUnrepresentable = stderrors.New("path cannot be represented in an action list")

// Entry is one line of an action list.
type Entry struct {
	Action Action `json:"action"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// Header is the metadata Encode writes as comment lines.
type Header struct {
	PlanID      string    `json:"plan_id,omitempty"`
	Root        string    `json:"root,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
	Algorithm   string    `json:"algorithm,omitempty"`
}

// Plan is an ordered list of duplicate sets plus header metadata.
type Plan struct {
	Header Header
	Sets   []dedup.DuplicateSet
}

// Representable reports whether path can be written as a plan field.
func Representable(path string) bool {
	return !strings.ContainsAny(path, "|\r\n")
}

// New builds a Plan from detected sets. Members whose paths cannot be
// represented are left out and returned as dropped; a set that falls below
// two members is left out entirely.
func New(header Header, sets []dedup.DuplicateSet) (p *Plan, dropped []string) {
	p = &Plan{Header: header}
	for _, set := range sets {
		ok := lo.Filter(set.Files, func(f scan.FileRecord, _ int) bool {
			if Representable(f.Path) {
				return true
			}
			dropped = append(dropped, f.Path)
			return false
		})
		if len(ok) < 2 {
			continue
		}
		set.Files = ok
		p.Sets = append(p.Sets, set)
	}
	return p, dropped
}

// Entries flattens the plan into action-list entries, KEEP first in each set.
func (p *Plan) Entries() []Entry {
	var entries []Entry
	for _, set := range p.Sets {
		for i, f := range set.Files {
			action := ActionDuplicate
			if i == 0 {
				action = ActionKeep
			}
			entries = append(entries, Entry{Action: action, Path: f.Path, Size: set.Size, Digest: set.Digest})
		}
	}
	return entries
}

// EntrySet is a run of entries sharing one digest.
type EntrySet struct {
	Digest  string  `json:"digest"`
	Size    int64   `json:"size"`
	Entries []Entry `json:"entries"`
}

// Group collects entries by digest, in order of first appearance.
func Group(entries []Entry) []EntrySet {
	index := make(map[string]int)
	var sets []EntrySet
	for _, e := range entries {
		i, ok := index[e.Digest]
		if !ok {
			i = len(sets)
			index[e.Digest] = i
			sets = append(sets, EntrySet{Digest: e.Digest, Size: e.Size})
		}
		sets[i].Entries = append(sets[i].Entries, e)
	}
	return sets
}

// Stats summarizes a list of entries.
type Stats struct {
	Sets             int   `json:"sets"`
	Keep             int   `json:"keep"`
	Duplicates       int   `json:"duplicates"`
	ReclaimableBytes int64 `json:"reclaimable_bytes"`
}

// Summarize counts entries by action. ReclaimableBytes is the total size of
// the DUPLICATE entries.
func Summarize(entries []Entry) Stats {
	dups := lo.Filter(entries, func(e Entry, _ int) bool { return e.Action == ActionDuplicate })
	return Stats{
		Sets:             len(Group(entries)),
		Keep:             lo.CountBy(entries, func(e Entry) bool { return e.Action == ActionKeep }),
		Duplicates:       len(dups),
		ReclaimableBytes: lo.SumBy(dups, func(e Entry) int64 { return e.Size }),
	}
}

func (e Entry) String() string {
	return fmt.Sprintf("%s|%s|%d|%s", e.Action, e.Path, e.Size, e.Digest)
}
