package ops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/fsutil"
	"github.com/hpungsan/dupsweep/internal/plan"
)

// PlanExt is the required extension for plan files.
const PlanExt = ".txt"

// defaultPlanPath returns <base>/plans/<plan_id>.txt.
func defaultPlanPath(cfg *config.Config, planID string) (string, error) {
	dir := cfg.PlansDir()
	if dir == "" {
		return "", errors.NewInvalidRequest("plan_path is required (no base directory configured)")
	}
	return filepath.Join(dir, planID+PlanExt), nil
}

// writePlanFile writes p to path through a temp file, then renames it into place
// so an existing plan is never left half-written.
func writePlanFile(path string, p *plan.Plan) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create plan directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := fsutil.OpenNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create plan file: %w", err))
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := plan.Encode(file, p); err != nil {
		return errors.NewInternal(err)
	}

	// Ensure file is written
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close plan file: %w", err))
	}
	file = nil

	// Check if destination is a symlink (os.Rename would follow it)
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("plan path is a symlink")
	}

	// Note: On Windows, os.Rename fails if the destination exists. We fail safely
	// (preserving the existing file) instead of a non-atomic delete+rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("plan destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize plan file: %w", err))
	}

	success = true
	return nil
}

// readPlanFile validates path and decodes the action list stored there.
func readPlanFile(cfg *config.Config, path string) (*plan.Document, error) {
	if err := checkPlanPath(path, planRead, cfg); err != nil {
		return nil, err
	}

	file, err := fsutil.OpenReadNoFollow(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open plan file: %w", err))
	}
	defer file.Close()

	doc, err := plan.Decode(file)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return doc, nil
}
