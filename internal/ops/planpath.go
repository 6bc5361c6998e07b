package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/errors"
)

// planAccess says whether a plan path is about to be read or written.
type planAccess int

const (
	planRead  planAccess = iota // inspect, apply, report
	planWrite                   // detect
)

// checkPlanPath enforces where plan files may live:
//
//   - the name ends in .txt and no component is ".."
//   - the file sits directly in the plans directory or an allowed_paths entry;
//     allow_unsafe_paths lifts this rule only
//   - neither the file nor its directory is a symlink
//   - a plan being read exists
//
// Only the final component is opened with O_NOFOLLOW, so nested directories
// are refused rather than walked.
func checkPlanPath(path string, access planAccess, cfg *config.Config) error {
	abs, err := planAbs(path)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.AllowUnsafePaths {
		if err := checkPlanDir(abs, cfg); err != nil {
			return err
		}
	}

	info, err := os.Lstat(abs)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		return errors.NewInvalidRequest("plan_path must not be a symlink")
	case access == planRead && os.IsNotExist(err):
		return errors.NewFileNotFound(path)
	}
	return nil
}

// planAbs checks the shape of a plan path and makes it absolute.
func planAbs(path string) (string, error) {
	switch {
	case path == "":
		return "", errors.NewInvalidRequest("plan_path is required")
	case hasDotDot(path):
		return "", errors.NewInvalidRequest("plan_path must not contain ..")
	case filepath.Ext(filepath.Clean(path)) != PlanExt:
		return "", errors.NewInvalidRequest("plan_path must end in " + PlanExt)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid plan_path: %v", err))
	}
	return abs, nil
}

func checkPlanDir(abs string, cfg *config.Config) error {
	dirs, err := planDirs(cfg)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if !lo.Contains(dirs, dir) {
		return errors.NewInvalidRequest(fmt.Sprintf("plan_path must be directly in one of %v", dirs))
	}
	if isSymlink(dir) {
		return errors.NewInvalidRequest("plan directory must not be a symlink")
	}
	return nil
}

// planDirs lists the directories plans may sit in: <base>/plans plus every
// absolute allowed_paths entry. A symlinked entry is replaced by its target.
func planDirs(cfg *config.Config) ([]string, error) {
	candidates := []string{cfg.PlansDir()}
	if cfg != nil {
		candidates = append(candidates, lo.Filter(cfg.AllowedPaths, func(p string, _ int) bool {
			return filepath.IsAbs(p)
		})...)
	}

	var dirs []string
	for _, d := range candidates {
		if d == "" {
			continue
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if isSymlink(abs) {
			if abs, err = filepath.EvalSymlinks(abs); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve allowed path: %v", err))
			}
		}
		dirs = append(dirs, abs)
	}
	return lo.Uniq(dirs), nil
}

// hasDotDot reports whether any component of path, split on either slash, is "..".
func hasDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == filepath.Separator })
	return lo.Contains(parts, "..")
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}
