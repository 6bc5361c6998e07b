package ops

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/db"
	"github.com/hpungsan/dupsweep/internal/dedup"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/plan"
	"github.com/hpungsan/dupsweep/internal/report"
	"github.com/hpungsan/dupsweep/internal/scan"
)

// DetectInput contains parameters for the Detect operation.
type DetectInput struct {
	Root     string         // required
	PlanPath string         // optional, default: <base>/plans/<plan_id>.txt
	NoWrite  bool           // return the plan without writing a file
	Progress dedup.Progress // optional
}

// DetectOutput contains the result of the Detect operation.
type DetectOutput struct {
	RunID            string           `json:"run_id,omitempty"`
	PlanID           string           `json:"plan_id"`
	Root             string           `json:"root"`
	PlanPath         string           `json:"plan_path,omitempty"`
	Sets             int              `json:"sets"`
	Files            int              `json:"files"`
	ReclaimableBytes int64            `json:"reclaimable_bytes"`
	Scan             scan.Stats       `json:"scan"`
	Hashing          dedup.GroupStats `json:"hashing"`
	CacheHits        int              `json:"cache_hits,omitempty"`
	Unrepresentable  []string         `json:"unrepresentable,omitempty"`

	// Plan is the detected plan, for callers applying it in the same process.
	Plan *plan.Plan `json:"-"`
}

// Detect finds duplicate files under input.Root and writes an action list.
// The run is recorded in database when it is non-nil.
func Detect(ctx context.Context, database *sql.DB, cfg *config.Config, input DetectInput) (*DetectOutput, error) {
	if strings.TrimSpace(input.Root) == "" {
		return nil, errors.NewInvalidRequest("root is required")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("detect")
	}

	planID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	// Resolve and validate the plan path before doing any work.
	planPath := ""
	if !input.NoWrite {
		planPath = input.PlanPath
		if planPath == "" {
			if planPath, err = defaultPlanPath(cfg, planID); err != nil {
				return nil, err
			}
		}
		if err := checkPlanPath(planPath, planWrite, cfg); err != nil {
			return nil, err
		}
	}

	scanner, err := scan.NewScanner(scan.Options{Exclude: cfg.ExcludePatterns, MinSize: cfg.MinSize})
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	var hasher scan.Hasher = scan.SHA256Hasher{BlockSize: cfg.HashBlockSize}
	var caching *scan.CachingHasher
	if cfg.UseHashCache && database != nil {
		caching = scan.NewCachingHasher(hasher, db.NewHashCache(database, scan.Algorithm))
		hasher = caching
	}

	result, err := dedup.Detect(input.Root, scanner, hasher, input.Progress)
	if err != nil {
		return nil, rootError(input.Root, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("detect")
	}

	header := plan.Header{
		PlanID:      planID,
		Root:        result.Root,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Algorithm:   scan.Algorithm,
	}
	p, dropped := plan.New(header, result.Sets)
	for _, path := range dropped {
		slog.Warn("leaving file out of plan: path cannot be represented", "path", fmt.Sprintf("%q", path))
	}

	entries := p.Entries()
	stats := plan.Summarize(entries)

	out := &DetectOutput{
		PlanID:           planID,
		Root:             result.Root,
		Sets:             stats.Sets,
		Files:            len(entries),
		ReclaimableBytes: stats.ReclaimableBytes,
		Scan:             result.Scan,
		Hashing:          result.Group,
		Unrepresentable:  dropped,
		Plan:             p,
	}
	if caching != nil {
		out.CacheHits = caching.Hits
	}

	slog.Debug("detect finished",
		"root", result.Root,
		"files", result.Scan.Files,
		"candidates", result.Scan.Candidates,
		"skipped", result.Scan.Skipped,
		"hash_failed", result.Group.HashFailed,
		"sets", stats.Sets,
	)

	if !input.NoWrite {
		if err := writePlanFile(planPath, p); err != nil {
			return nil, err
		}
		out.PlanPath = planPath
	}

	if database != nil {
		runID, err := generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		run := &db.Run{
			ID:       runID,
			Kind:     db.KindDetect,
			PlanID:   planID,
			Root:     result.Root,
			PlanPath: out.PlanPath,
			Sets:     stats.Sets,
			Files:    len(entries),
			Bytes:    stats.ReclaimableBytes,
			Skipped:  result.Scan.Skipped + result.Group.HashFailed + len(dropped),
			Report:   report.PlanMarkdown(header, entries),
		}
		if err := db.InsertRun(database, run); err != nil {
			return nil, err
		}
		out.RunID = runID
	}

	return out, nil
}
