package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/dupsweep/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/dupsweep.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.dupsweep.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Create plans subdirectory (default location for action lists)
	plansDir := filepath.Join(baseDir, "plans")
	if err := os.MkdirAll(plansDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create plans directory: %w", err)
	}
	_ = os.Chmod(plansDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, "dupsweep.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
// Call after Init if you need to tune pool behavior for contention.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS runs (
		  id          TEXT PRIMARY KEY,
		  kind        TEXT NOT NULL,
		  plan_id     TEXT,
		  root        TEXT NOT NULL,
		  plan_path   TEXT,
		  quarantine  TEXT,
		  sets        INTEGER NOT NULL DEFAULT 0,
		  files       INTEGER NOT NULL DEFAULT 0,
		  bytes       INTEGER NOT NULL DEFAULT 0,
		  moved       INTEGER NOT NULL DEFAULT 0,
		  failed      INTEGER NOT NULL DEFAULT 0,
		  skipped     INTEGER NOT NULL DEFAULT 0,
		  dry_run     INTEGER NOT NULL DEFAULT 0,
		  report_md   TEXT,
		  created_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created
		ON runs(created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_runs_kind_created
		ON runs(kind, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_runs_plan_id
		ON runs(plan_id)
		WHERE plan_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS hash_cache (
		  path       TEXT PRIMARY KEY,
		  size       INTEGER NOT NULL,
		  mtime_ns   INTEGER NOT NULL,
		  algorithm  TEXT NOT NULL,
		  digest     TEXT NOT NULL,
		  hashed_at  INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
