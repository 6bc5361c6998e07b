package db

import (
	"database/sql"
	"time"

	"github.com/hpungsan/dupsweep/internal/errors"
)

// Run kinds.
const (
	KindDetect = "detect"
	KindApply  = "apply"
)

// Run is one recorded detect or apply invocation.
//
// For detect runs Bytes is the reclaimable size of the plan; for apply runs it
// is the number of bytes moved out of the source tree, which is zero for a dry
// run.
type Run struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	PlanID     string `json:"plan_id,omitempty"`
	Root       string `json:"root"`
	PlanPath   string `json:"plan_path,omitempty"`
	Quarantine string `json:"quarantine,omitempty"`
	Sets       int    `json:"sets"`
	Files      int    `json:"files"`
	Bytes      int64  `json:"bytes"`
	Moved      int    `json:"moved"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DryRun     bool   `json:"dry_run,omitempty"`
	Report     string `json:"-"`
	CreatedAt  int64  `json:"created_at"`
}

// InsertRun stores a run. CreatedAt defaults to now.
func InsertRun(db *sql.DB, r *Run) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO runs (
			id, kind, plan_id, root, plan_path, quarantine,
			sets, files, bytes, moved, failed, skipped,
			dry_run, report_md, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		r.ID, r.Kind, toNullString(r.PlanID), r.Root, toNullString(r.PlanPath), toNullString(r.Quarantine),
		r.Sets, r.Files, r.Bytes, r.Moved, r.Failed, r.Skipped,
		boolToInt(r.DryRun), toNullString(r.Report), r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

const runColumns = `
	id, kind, plan_id, root, plan_path, quarantine,
	sets, files, bytes, moved, failed, skipped,
	dry_run, report_md, created_at
`

// GetRun retrieves a run by its ULID, including its stored report.
func GetRun(db *sql.DB, id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Kind   string // empty for all kinds
	Limit  int
	Offset int
}

// ListRuns returns runs newest first, plus the total matching the filter.
// Report is not loaded.
func ListRuns(db *sql.DB, f RunFilter) ([]Run, int, error) {
	where := ""
	var args []any
	if f.Kind != "" {
		where = " WHERE kind = ?"
		args = append(args, f.Kind)
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + runColumns + ` FROM runs` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.Query(query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		r.Report = ""
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return runs, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run struct.
func scanRun(row rowScanner) (*Run, error) {
	var (
		r          Run
		planID     sql.NullString
		planPath   sql.NullString
		quarantine sql.NullString
		report     sql.NullString
		dryRun     int
	)

	err := row.Scan(
		&r.ID, &r.Kind, &planID, &r.Root, &planPath, &quarantine,
		&r.Sets, &r.Files, &r.Bytes, &r.Moved, &r.Failed, &r.Skipped,
		&dryRun, &report, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.PlanID = planID.String
	r.PlanPath = planPath.String
	r.Quarantine = quarantine.String
	r.Report = report.String
	r.DryRun = dryRun != 0
	return &r, nil
}

// HashCache stores content digests keyed on path, size and modification time.
// It satisfies scan.DigestCache.
type HashCache struct {
	db        *sql.DB
	algorithm string
}

// NewHashCache returns a cache for digests produced by algorithm.
func NewHashCache(db *sql.DB, algorithm string) *HashCache {
	return &HashCache{db: db, algorithm: algorithm}
}

// Lookup returns the cached digest if path was hashed with the same size,
// mtime and algorithm.
func (c *HashCache) Lookup(path string, size, modTime int64) (string, bool, error) {
	var digest string
	err := c.db.QueryRow(`
		SELECT digest FROM hash_cache
		WHERE path = ? AND size = ? AND mtime_ns = ? AND algorithm = ?
	`, path, size, modTime, c.algorithm).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return digest, true, nil
}

// Store records a digest, replacing any previous entry for path.
func (c *HashCache) Store(path string, size, modTime int64, digest string) error {
	_, err := c.db.Exec(`
		INSERT INTO hash_cache (path, size, mtime_ns, algorithm, digest, hashed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime_ns = excluded.mtime_ns,
			algorithm = excluded.algorithm,
			digest = excluded.digest,
			hashed_at = excluded.hashed_at
	`, path, size, modTime, c.algorithm, digest, time.Now().Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
