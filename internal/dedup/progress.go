package dedup

import "github.com/hpungsan/dupsweep/internal/scan"

// Progress receives detection events. Implementations must not block for long;
// calls happen on the detecting goroutine.
type Progress interface {
	Scanned(stats scan.Stats)
	Hashing(total int)
	Hashed(path string, err error)
	Grouped(sets []DuplicateSet)
}

// NopProgress ignores every event.
type NopProgress struct{}

func (NopProgress) Scanned(scan.Stats) {}
func (NopProgress) Hashing(int) {}
func (NopProgress) Hashed(string, error) {}
func (NopProgress) Grouped([]DuplicateSet) {}
