package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/dupsweep/internal/db"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/mover"
)

func TestApply_MovesDuplicates(t *testing.T) {
	database, cfg := setupTest(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "xyz", "sub/b": "xyz"})

	det, err := Detect(context.Background(), database, cfg, DetectInput{Root: root})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	q := filepath.Join(t.TempDir(), "q")
	out, err := Apply(context.Background(), database, cfg, ApplyInput{PlanPath: det.PlanPath, QuarantineRoot: q})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if out.Moved != 1 || out.Failed != 0 || out.BytesFreed != 3 {
		t.Errorf("result = moved %d failed %d freed %d, want 1 0 3", out.Moved, out.Failed, out.BytesFreed)
	}
	if out.SourceRoot != det.Root {
		t.Errorf("SourceRoot = %q, want header root %q", out.SourceRoot, det.Root)
	}
	if _, err := os.Stat(filepath.Join(q, "sub", "b")); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "sub", "b")); !os.IsNotExist(err) {
		t.Errorf("source still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a")); err != nil {
		t.Errorf("KEEP file touched: %v", err)
	}

	run, err := db.GetRun(database, out.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Kind != db.KindApply || run.Moved != 1 || run.PlanID != det.PlanID {
		t.Errorf("run = %+v, want apply run with 1 moved", run)
	}
	if !strings.Contains(run.Report, "# Move summary") {
		t.Errorf("run report missing heading:\n%s", run.Report)
	}
}

func TestApply_DefaultQuarantine(t *testing.T) {
	database, cfg := setupTest(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "x", "b": "x"})

	det, err := Detect(context.Background(), database, cfg, DetectInput{Root: root})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	out, err := Apply(context.Background(), database, cfg, ApplyInput{PlanPath: det.PlanPath})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if filepath.Dir(out.QuarantineRoot) != root {
		t.Errorf("QuarantineRoot = %q, want a directory under %q", out.QuarantineRoot, root)
	}
	name := filepath.Base(out.QuarantineRoot)
	if !strings.HasPrefix(name, cfg.QuarantinePrefix) || len(name) != len(cfg.QuarantinePrefix)+len(QuarantineTimeFormat) {
		t.Errorf("quarantine name = %q, want %s<timestamp>", name, cfg.QuarantinePrefix)
	}
	if _, err := os.Stat(filepath.Join(out.QuarantineRoot, "b")); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}

	// A second detect must not see the quarantined copy.
	again, err := Detect(context.Background(), database, cfg, DetectInput{Root: root, NoWrite: true})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if again.Sets != 0 {
		t.Errorf("re-detect Sets = %d, want 0", again.Sets)
	}
}

func TestApply_DryRun(t *testing.T) {
	database, cfg := setupTest(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "x", "b": "x"})

	det, err := Detect(context.Background(), database, cfg, DetectInput{Root: root})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	q := filepath.Join(t.TempDir(), "q")
	confirmCalled := false
	out, err := Apply(context.Background(), database, cfg, ApplyInput{
		PlanPath:       det.PlanPath,
		QuarantineRoot: q,
		DryRun:         true,
		Confirm:        func(Preview) bool { confirmCalled = true; return false },
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if confirmCalled {
		t.Error("Confirm called for a dry run")
	}
	if out.Planned != 1 || out.BytesPlanned != 1 || !out.DryRun {
		t.Errorf("Planned = %d, BytesPlanned = %d, DryRun = %v, want 1, 1, true", out.Planned, out.BytesPlanned, out.DryRun)
	}
	if out.Moved != 0 || out.BytesFreed != 0 {
		t.Errorf("dry run reported moved %d freed %d, want 0 0", out.Moved, out.BytesFreed)
	}
	run, err := db.GetRun(database, out.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !run.DryRun || run.Moved != 0 || run.Bytes != 0 {
		t.Errorf("recorded run = %+v, want a dry run with nothing moved", run)
	}
	if out.Outcomes[0].Status != mover.StatusPlanned {
		t.Errorf("Status = %q, want %q", out.Outcomes[0].Status, mover.StatusPlanned)
	}
	if _, err := os.Stat(q); !os.IsNotExist(err) {
		t.Errorf("dry run created quarantine: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "b")); err != nil {
		t.Errorf("dry run moved source: %v", err)
	}
}

func TestApply_ConfirmDeclined(t *testing.T) {
	database, cfg := setupTest(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "x", "b": "x"})

	det, err := Detect(context.Background(), database, cfg, DetectInput{Root: root})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	var seen Preview
	_, err = Apply(context.Background(), database, cfg, ApplyInput{
		PlanPath: det.PlanPath,
		Confirm:  func(p Preview) bool { seen = p; return false },
	})
	if !errors.Is(err, errors.ErrCancelled) {
		t.Fatalf("Apply() error = %v, want CANCELLED", err)
	}
	if seen.Stats.Duplicates != 1 || seen.SourceRoot != det.Root {
		t.Errorf("Preview = %+v, want 1 duplicate under %s", seen, det.Root)
	}
	if _, err := os.Stat(filepath.Join(root, "b")); err != nil {
		t.Errorf("declined apply moved source: %v", err)
	}

	hist, err := History(database, HistoryInput{Kind: db.KindApply})
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if hist.Pagination.Total != 0 {
		t.Errorf("declined apply recorded %d runs", hist.Pagination.Total)
	}
}

func TestApply_SourceMissingCountsAsFailure(t *testing.T) {
	database, cfg := setupTest(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "x", "b": "x", "c": "x"})

	det, err := Detect(context.Background(), database, cfg, DetectInput{Root: root})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if err := os.Remove(filepath.Join(root, "b")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	out, err := Apply(context.Background(), database, cfg, ApplyInput{PlanPath: det.PlanPath, QuarantineRoot: filepath.Join(t.TempDir(), "q")})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if out.Moved != 1 || out.Failed != 1 || out.BytesFreed != 1 {
		t.Errorf("result = moved %d failed %d freed %d, want 1 1 1", out.Moved, out.Failed, out.BytesFreed)
	}
	if out.Outcomes[0].Reason != mover.ReasonSourceMissing {
		t.Errorf("Reason = %q, want %q", out.Outcomes[0].Reason, mover.ReasonSourceMissing)
	}
}

func TestApply_CollisionInQuarantine(t *testing.T) {
	database, cfg := setupTest(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "x", "report.txt": "x"})
	q := t.TempDir()
	writeTree(t, q, map[string]string{"report.txt": "older"})

	det, err := Detect(context.Background(), database, cfg, DetectInput{Root: root})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	out, err := Apply(context.Background(), database, cfg, ApplyInput{PlanPath: det.PlanPath, QuarantineRoot: q})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got, want := out.Outcomes[0].Destination, filepath.Join(q, "report_1.txt"); got != want {
		t.Errorf("Destination = %q, want %q", got, want)
	}
	data, _ := os.ReadFile(filepath.Join(q, "report.txt"))
	if string(data) != "older" {
		t.Errorf("existing quarantine file overwritten: %q", data)
	}
}

func TestApply_InMemoryPlan(t *testing.T) {
	_, cfg := setupTest(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "x", "b": "x"})

	det, err := Detect(context.Background(), nil, cfg, DetectInput{Root: root, NoWrite: true})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	out, err := Apply(context.Background(), nil, cfg, ApplyInput{Plan: det.Plan, QuarantineRoot: filepath.Join(t.TempDir(), "q")})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if out.Moved != 1 || out.RunID != "" {
		t.Errorf("Moved = %d, RunID = %q, want 1 and no run recorded", out.Moved, out.RunID)
	}
}

func TestApply_Errors(t *testing.T) {
	database, cfg := setupTest(t)

	// plan with no duplicates
	empty, err := Detect(context.Background(), database, cfg, DetectInput{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "x", "b": "x"})
	det, err := Detect(context.Background(), database, cfg, DetectInput{Root: root})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	file := filepath.Join(t.TempDir(), "file")
	writeTree(t, filepath.Dir(file), map[string]string{"file": "x"})
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(root, link); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	tests := []struct {
		name  string
		input ApplyInput
		want  errors.ErrorCode
	}{
		{"no plan", ApplyInput{}, errors.ErrInvalidRequest},
		{"empty plan", ApplyInput{PlanPath: empty.PlanPath}, errors.ErrPlanEmpty},
		{"missing plan file", ApplyInput{PlanPath: filepath.Join(cfg.PlansDir(), "gone.txt")}, errors.ErrFileNotFound},
		{"missing source root", ApplyInput{PlanPath: det.PlanPath, SourceRoot: filepath.Join(root, "nope")}, errors.ErrRootNotFound},
		{"quarantine is a file", ApplyInput{PlanPath: det.PlanPath, QuarantineRoot: file}, errors.ErrInvalidRequest},
		{"quarantine is source root", ApplyInput{PlanPath: det.PlanPath, QuarantineRoot: root}, errors.ErrInvalidRequest},
		{"quarantine is source root unclean", ApplyInput{PlanPath: det.PlanPath, QuarantineRoot: root + string(filepath.Separator) + "."}, errors.ErrInvalidRequest},
		{"quarantine links to source root", ApplyInput{PlanPath: det.PlanPath, QuarantineRoot: link}, errors.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(context.Background(), database, cfg, tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("Apply() error = %v, want code %s", err, tt.want)
			}
		})
	}

	// Rejected requests leave the tree alone.
	if _, err := os.Stat(filepath.Join(root, "b")); err != nil {
		t.Errorf("source b moved by a rejected apply: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "b_1")); !os.IsNotExist(err) {
		t.Errorf("b renamed in place: %v", err)
	}
}
