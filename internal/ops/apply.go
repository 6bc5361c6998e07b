package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/db"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/mover"
	"github.com/hpungsan/dupsweep/internal/plan"
	"github.com/hpungsan/dupsweep/internal/report"
	"github.com/hpungsan/dupsweep/internal/scan"
)

// QuarantineTimeFormat is the suffix format of default quarantine directories.
const QuarantineTimeFormat = "20060102_150405"

// Preview is what a Confirmer is shown before files are moved.
type Preview struct {
	Stats          plan.Stats `json:"stats"`
	SourceRoot     string     `json:"source_root"`
	QuarantineRoot string     `json:"quarantine_root"`
	Malformed      int        `json:"malformed"`
}

// Confirmer decides whether a non-dry-run apply proceeds.
type Confirmer func(Preview) bool

// ApplyInput contains parameters for the Apply operation.
// Exactly one of PlanPath or Plan is used; Plan wins when both are set.
type ApplyInput struct {
	PlanPath       string     // plan file written by Detect
	Plan           *plan.Plan // in-process plan from DetectOutput.Plan
	SourceRoot     string     // optional, default: plan header root
	QuarantineRoot string     // optional, default: <source_root>/<prefix><YYYYmmdd_HHMMSS>
	DryRun         bool       // compute destinations only
	Confirm        Confirmer  // optional; nil proceeds without asking
}

// ApplyOutput contains the result of the Apply operation.
type ApplyOutput struct {
	RunID          string          `json:"run_id,omitempty"`
	PlanID         string          `json:"plan_id,omitempty"`
	SourceRoot     string          `json:"source_root"`
	QuarantineRoot string          `json:"quarantine_root"`
	DryRun         bool            `json:"dry_run"`
	Moved          int             `json:"moved"`
	Planned        int             `json:"planned,omitempty"` // dry run only
	Failed         int             `json:"failed"`
	BytesFreed     int64           `json:"bytes_freed"`
	BytesPlanned   int64           `json:"bytes_planned,omitempty"` // dry run only
	Malformed      int             `json:"malformed"`
	Outcomes       []mover.Outcome `json:"outcomes"`
}

// Apply moves the DUPLICATE entries of a plan into a quarantine directory.
// Per-file failures are counted in the output; only an unusable plan or root
// is an error.
func Apply(ctx context.Context, database *sql.DB, cfg *config.Config, input ApplyInput) (*ApplyOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var (
		header    plan.Header
		entries   []plan.Entry
		malformed int
		source    = input.PlanPath
	)
	switch {
	case input.Plan != nil:
		header = input.Plan.Header
		entries = input.Plan.Entries()
		source = "in-memory plan"
	case input.PlanPath != "":
		doc, err := readPlanFile(cfg, input.PlanPath)
		if err != nil {
			return nil, err
		}
		header, entries, malformed = doc.Header, doc.Entries, len(doc.Errors)
	default:
		return nil, errors.NewInvalidRequest("plan_path is required")
	}

	stats := plan.Summarize(entries)
	if stats.Duplicates == 0 {
		return nil, errors.NewPlanEmpty(source)
	}

	sourceRoot := input.SourceRoot
	if sourceRoot == "" {
		sourceRoot = header.Root
	}
	if sourceRoot == "" {
		return nil, errors.NewInvalidRequest("source_root is required (plan header has no root)")
	}
	resolved, err := scan.ResolveRoot(sourceRoot)
	if err != nil {
		return nil, rootError(sourceRoot, err)
	}
	sourceRoot = resolved

	quarantine := input.QuarantineRoot
	if quarantine == "" {
		quarantine = filepath.Join(sourceRoot, cfg.QuarantinePrefix+time.Now().Format(QuarantineTimeFormat))
	}
	if quarantine, err = filepath.Abs(quarantine); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if info, err := os.Lstat(quarantine); err == nil && !info.IsDir() {
		return nil, errors.NewInvalidRequest("quarantine_root exists and is not a directory")
	}
	if samePath(quarantine, sourceRoot) {
		return nil, errors.NewInvalidRequest("quarantine_root must differ from source_root")
	}

	if !input.DryRun && input.Confirm != nil {
		ok := input.Confirm(Preview{Stats: stats, SourceRoot: sourceRoot, QuarantineRoot: quarantine, Malformed: malformed})
		if !ok {
			return nil, errors.NewCancelled("apply")
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("apply")
	}

	res := mover.Apply(entries, quarantine, sourceRoot, mover.Options{
		DryRun: input.DryRun,
		OnOutcome: func(o mover.Outcome) {
			switch {
			case o.Status == mover.StatusFailed:
				slog.Warn("move failed", "source", o.Source, "reason", o.Reason, "error", o.Error)
			case o.Flattened:
				slog.Warn("source outside root, placed by base name", "source", o.Source, "destination", o.Destination)
			default:
				slog.Debug("moved", "source", o.Source, "destination", o.Destination, "dry_run", input.DryRun)
			}
		},
	})
	if res.Outcomes == nil {
		res.Outcomes = []mover.Outcome{}
	}

	out := &ApplyOutput{
		PlanID:         header.PlanID,
		SourceRoot:     sourceRoot,
		QuarantineRoot: quarantine,
		DryRun:         input.DryRun,
		Moved:          res.Moved,
		Planned:        res.Planned,
		Failed:         res.Failed,
		BytesFreed:     res.BytesFreed,
		BytesPlanned:   res.BytesPlanned,
		Malformed:      malformed,
		Outcomes:       res.Outcomes,
	}

	if database != nil {
		runID, err := generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		run := &db.Run{
			ID:         runID,
			Kind:       db.KindApply,
			PlanID:     header.PlanID,
			Root:       sourceRoot,
			PlanPath:   input.PlanPath,
			Quarantine: quarantine,
			Sets:       stats.Sets,
			Files:      stats.Duplicates,
			Bytes:      res.BytesFreed,
			Moved:      res.Moved,
			Failed:     res.Failed,
			Skipped:    malformed,
			DryRun:     input.DryRun,
			Report:     report.ApplyMarkdown(res, quarantine, input.DryRun),
		}
		if err := db.InsertRun(database, run); err != nil {
			return nil, err
		}
		out.RunID = runID
	}

	return out, nil
}

// samePath reports whether a and b name the same directory once cleaned and,
// where they exist, resolved through symlinks.
func samePath(a, b string) bool {
	resolve := func(p string) string {
		p = filepath.Clean(p)
		if r, err := filepath.EvalSymlinks(p); err == nil {
			return r
		}
		return p
	}
	return resolve(a) == resolve(b)
}
