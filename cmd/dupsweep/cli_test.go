package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/db"
	"github.com/hpungsan/dupsweep/internal/ops"
	"github.com/hpungsan/dupsweep/internal/plan"
)

// setupTestDB creates a temporary database and a config rooted next to it.
func setupTestDB(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.BaseDir = tmpDir
	return database, cfg
}

// runCLI runs args through a fresh app and returns what it printed to stdout.
func runCLI(t *testing.T, database *sql.DB, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(database, cfg)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	err := app.Run(append([]string{"dupsweep"}, args...))

	w.Close()
	os.Stdout = oldStdout
	return string(<-done), err
}

// duplicateTree writes two identical files and one unique file under a new root.
func duplicateTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.txt": "same",
		"b.txt": "same",
		"c.txt": "different",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return root
}

func detectPlan(t *testing.T, database *sql.DB, cfg *config.Config, root string) ops.DetectOutput {
	t.Helper()
	out, err := runCLI(t, database, cfg, "detect", root)
	if err != nil {
		t.Fatalf("detect command failed: %v", err)
	}
	var output ops.DetectOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	return output
}

// TestCLIDetect tests the detect command.
func TestCLIDetect(t *testing.T) {
	database, cfg := setupTestDB(t)
	root := duplicateTree(t)

	output := detectPlan(t, database, cfg, root)

	if output.Sets != 1 {
		t.Errorf("expected sets=1, got %d", output.Sets)
	}
	if output.ReclaimableBytes != 4 {
		t.Errorf("expected reclaimable_bytes=4, got %d", output.ReclaimableBytes)
	}
	if filepath.Dir(output.PlanPath) != cfg.PlansDir() {
		t.Errorf("expected plan in %s, got %s", cfg.PlansDir(), output.PlanPath)
	}
	if _, err := os.Stat(output.PlanPath); err != nil {
		t.Errorf("plan file not written: %v", err)
	}
}

// TestCLIDetectNoWrite tests that --no-write leaves no plan behind.
func TestCLIDetectNoWrite(t *testing.T) {
	database, cfg := setupTestDB(t)
	root := duplicateTree(t)

	out, err := runCLI(t, database, cfg, "detect", "--no-write", root)
	if err != nil {
		t.Fatalf("detect command failed: %v", err)
	}
	var output ops.DetectOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.PlanPath != "" {
		t.Errorf("expected no plan_path, got %s", output.PlanPath)
	}
	if output.Sets != 1 {
		t.Errorf("expected sets=1, got %d", output.Sets)
	}
}

// TestCLIInspect tests the inspect command.
func TestCLIInspect(t *testing.T) {
	database, cfg := setupTestDB(t)
	detected := detectPlan(t, database, cfg, duplicateTree(t))

	out, err := runCLI(t, database, cfg, "inspect", detected.PlanPath)
	if err != nil {
		t.Fatalf("inspect command failed: %v", err)
	}

	var output ops.InspectOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	want := plan.Stats{Sets: 1, Keep: 1, Duplicates: 1, ReclaimableBytes: 4}
	if output.Stats != want {
		t.Errorf("expected stats=%+v, got %+v", want, output.Stats)
	}
	if len(output.ToMove) != 1 || filepath.Base(output.ToMove[0].Path) != "b.txt" {
		t.Errorf("expected to_move=[b.txt], got %+v", output.ToMove)
	}
}

// TestCLIApply tests that apply without --yes only previews when stdin is not a terminal.
func TestCLIApply(t *testing.T) {
	database, cfg := setupTestDB(t)
	root := duplicateTree(t)
	detected := detectPlan(t, database, cfg, root)
	quarantine := filepath.Join(t.TempDir(), "q")

	t.Run("without --yes is a dry run", func(t *testing.T) {
		if stdinIsTerminal() {
			t.Skip("stdin is a terminal")
		}
		out, err := runCLI(t, database, cfg, "apply", "--quarantine", quarantine, detected.PlanPath)
		if err != nil {
			t.Fatalf("apply command failed: %v", err)
		}
		var output ops.ApplyOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
		}
		if !output.DryRun {
			t.Error("expected dry_run=true")
		}
		if _, err := os.Stat(filepath.Join(root, "b.txt")); err != nil {
			t.Errorf("b.txt should still be in place: %v", err)
		}
	})

	t.Run("--yes moves duplicates", func(t *testing.T) {
		out, err := runCLI(t, database, cfg, "apply", "--yes", "--quarantine", quarantine, detected.PlanPath)
		if err != nil {
			t.Fatalf("apply command failed: %v", err)
		}
		var output ops.ApplyOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
		}
		if output.DryRun || output.Moved != 1 || output.Failed != 0 {
			t.Errorf("expected moved=1 failed=0, got %+v", output)
		}
		if _, err := os.Stat(filepath.Join(quarantine, "b.txt")); err != nil {
			t.Errorf("b.txt not in quarantine: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "a.txt")); err != nil {
			t.Errorf("a.txt should be kept: %v", err)
		}
	})
}

// TestCLIReportAndHistory tests the report and history commands.
func TestCLIReportAndHistory(t *testing.T) {
	database, cfg := setupTestDB(t)
	detected := detectPlan(t, database, cfg, duplicateTree(t))

	out, err := runCLI(t, database, cfg, "report", "--plan", detected.PlanPath)
	if err != nil {
		t.Fatalf("report command failed: %v", err)
	}
	if !strings.HasPrefix(out, "# ") {
		t.Errorf("expected markdown report, got %q", out)
	}

	out, err = runCLI(t, database, cfg, "report", "--html", "--run", detected.RunID)
	if err != nil {
		t.Fatalf("report --html command failed: %v", err)
	}
	if !strings.Contains(out, "<h1") {
		t.Errorf("expected html report, got %q", out)
	}

	out, err = runCLI(t, database, cfg, "history", "--kind", "detect")
	if err != nil {
		t.Fatalf("history command failed: %v", err)
	}
	var history ops.HistoryOutput
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if len(history.Runs) != 1 || history.Runs[0].ID != detected.RunID {
		t.Errorf("expected one run %s, got %+v", detected.RunID, history.Runs)
	}
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	database, cfg := setupTestDB(t)

	tests := []struct {
		name string
		args []string
	}{
		{"detect without root", []string{"detect"}},
		{"detect missing root", []string{"detect", filepath.Join(t.TempDir(), "missing")}},
		{"inspect without plan", []string{"inspect"}},
		{"inspect outside plans dir", []string{"inspect", filepath.Join(t.TempDir(), "plan.txt")}},
		{"apply without plan", []string{"apply"}},
		{"report without source", []string{"report"}},
		{"report unknown run", []string{"report", "--run", "01ARZ3NDEKTSV4RRFFQ69G5FAV"}},
		{"history invalid kind", []string{"history", "--kind", "purge"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// cli.Exit writes to stderr, so just verify the error is returned
			if _, err := runCLI(t, database, cfg, tt.args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// TestPromptConfirm tests the interactive confirmation.
func TestPromptConfirm(t *testing.T) {
	preview := ops.Preview{
		Stats:          plan.Stats{Sets: 1, Keep: 1, Duplicates: 2, ReclaimableBytes: 2048},
		SourceRoot:     "/data",
		QuarantineRoot: "/data/duplicates-x",
		Malformed:      1,
	}

	tests := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" y \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got := promptConfirm(strings.NewReader(tt.input), &out)(preview)
			if got != tt.expected {
				t.Errorf("expected %v for %q, got %v", tt.expected, tt.input, got)
			}
			prompt := out.String()
			for _, want := range []string{"Move 2 files", "2.0 KiB", "/data/duplicates-x", "1 malformed", "[y/N]"} {
				if !strings.Contains(prompt, want) {
					t.Errorf("prompt %q missing %q", prompt, want)
				}
			}
		})
	}
}

// TestSetupLogging tests the verbose switch.
func TestSetupLogging(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	setupLogging(&buf, false)
	slog.Debug("hidden")
	slog.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output at info level: %q", buf.String())
	}

	buf.Reset()
	setupLogging(&buf, true)
	slog.Debug("detail")
	if !strings.Contains(buf.String(), "detail") {
		t.Errorf("expected debug output when verbose, got %q", buf.String())
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"dupsweep"}, false},
		{"detect command", []string{"dupsweep", "detect"}, true},
		{"apply command", []string{"dupsweep", "apply"}, true},
		{"serve command", []string{"dupsweep", "serve"}, true},
		{"help flag", []string{"dupsweep", "--help"}, true},
		{"version flag", []string{"dupsweep", "--version"}, true},
		{"verbose flag", []string{"dupsweep", "--verbose", "detect"}, true},
		{"short help flag", []string{"dupsweep", "-h"}, true},
		{"unknown arg defaults to MCP", []string{"dupsweep", "--unknown"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"dupsweep"}, false},
		{"help flag", []string{"dupsweep", "--help"}, true},
		{"short version flag", []string{"dupsweep", "-v"}, true},
		{"help command", []string{"dupsweep", "help"}, true},
		{"detect command", []string{"dupsweep", "detect"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}
