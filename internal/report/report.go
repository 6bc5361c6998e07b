// Package report renders plans and move results as human-readable markdown.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/dupsweep/internal/mover"
	"github.com/hpungsan/dupsweep/internal/plan"
)

// shortDigest is how many hex characters of a digest headings show.
const shortDigest = 12

// FormatSize renders a byte count in IEC units (1.5 KiB, 3.2 GiB).
func FormatSize(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// PlanMarkdown describes a plan: totals, then each duplicate set with its
// kept file and duplicates. Sets are listed largest waste first.
func PlanMarkdown(header plan.Header, entries []plan.Entry) string {
	stats := plan.Summarize(entries)
	sets := plan.Group(entries)
	sets = sortByWaste(sets)

	var b strings.Builder
	b.WriteString("# Duplicate report\n\n")
	if header.Root != "" {
		fmt.Fprintf(&b, "- Root: `%s`\n", header.Root)
	}
	if !header.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", header.GeneratedAt.UTC().Format(time.RFC3339))
	}
	if header.PlanID != "" {
		fmt.Fprintf(&b, "- Plan: `%s`\n", header.PlanID)
	}
	fmt.Fprintf(&b, "- Duplicate sets: %s\n", humanize.Comma(int64(stats.Sets)))
	fmt.Fprintf(&b, "- Affected files: %s\n", humanize.Comma(int64(stats.Keep+stats.Duplicates)))
	fmt.Fprintf(&b, "- Reclaimable: %s\n", FormatSize(stats.ReclaimableBytes))

	if len(sets) == 0 {
		b.WriteString("\nNo duplicates found.\n")
		return b.String()
	}

	for i, set := range sets {
		digest := set.Digest
		if len(digest) > shortDigest {
			digest = digest[:shortDigest]
		}
		fmt.Fprintf(&b, "\n## Set %d: %d files, %s each (`%s`)\n\n", i+1, len(set.Entries), FormatSize(set.Size), digest)
		for _, e := range set.Entries {
			fmt.Fprintf(&b, "- **%s** `%s`\n", e.Action, e.Path)
		}
	}
	return b.String()
}

func sortByWaste(sets []plan.EntrySet) []plan.EntrySet {
	waste := func(s plan.EntrySet) int64 {
		return s.Size * int64(lo.CountBy(s.Entries, func(e plan.Entry) bool { return e.Action == plan.ActionDuplicate }))
	}
	out := make([]plan.EntrySet, len(sets))
	copy(out, sets)
	sort.SliceStable(out, func(i, j int) bool { return waste(out[i]) > waste(out[j]) })
	return out
}

// ApplyMarkdown describes the result of moving a plan's duplicates.
func ApplyMarkdown(res mover.Result, quarantine string, dryRun bool) string {
	var b strings.Builder
	if dryRun {
		b.WriteString("# Move preview (dry run)\n\n")
	} else {
		b.WriteString("# Move summary\n\n")
	}
	fmt.Fprintf(&b, "- Quarantine: `%s`\n", quarantine)
	if dryRun {
		fmt.Fprintf(&b, "- Would move: %s\n", humanize.Comma(int64(res.Planned)))
		fmt.Fprintf(&b, "- Failed: %s\n", humanize.Comma(int64(res.Failed)))
		fmt.Fprintf(&b, "- Space to free: %s\n", FormatSize(res.BytesPlanned))
	} else {
		fmt.Fprintf(&b, "- Moved: %s\n", humanize.Comma(int64(res.Moved)))
		fmt.Fprintf(&b, "- Failed: %s\n", humanize.Comma(int64(res.Failed)))
		fmt.Fprintf(&b, "- Space freed: %s\n", FormatSize(res.BytesFreed))
	}

	failed := lo.Filter(res.Outcomes, func(o mover.Outcome, _ int) bool { return o.Status == mover.StatusFailed })
	if len(failed) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, o := range failed {
			fmt.Fprintf(&b, "- `%s`: %s", o.Source, o.Reason)
			if o.Error != "" {
				fmt.Fprintf(&b, " (%s)", o.Error)
			}
			b.WriteString("\n")
		}
	}

	flattened := lo.Filter(res.Outcomes, func(o mover.Outcome, _ int) bool { return o.Flattened && o.Status != mover.StatusFailed })
	if len(flattened) > 0 {
		b.WriteString("\n## Outside source root\n\nThese files were placed directly under the quarantine directory:\n\n")
		for _, o := range flattened {
			fmt.Fprintf(&b, "- `%s` -> `%s`\n", o.Source, o.Destination)
		}
	}
	return b.String()
}

// HTML converts report markdown to an HTML fragment.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}
