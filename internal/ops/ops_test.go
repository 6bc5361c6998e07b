package ops

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/db"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/scan"
)

// setupTest returns an initialized database and a config rooted in a temp dir.
func setupTest(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()
	base := t.TempDir()
	database, err := db.Init(base)
	if err != nil {
		t.Fatalf("db.Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.BaseDir = base
	return database, cfg
}

// writeTree creates files (relative path -> content) under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
}

func TestGenerateULID(t *testing.T) {
	a, err := generateULID()
	if err != nil {
		t.Fatalf("generateULID() error = %v", err)
	}
	b, err := generateULID()
	if err != nil {
		t.Fatalf("generateULID() error = %v", err)
	}
	if _, err := ulid.Parse(a); err != nil {
		t.Errorf("ulid.Parse(%q) error = %v", a, err)
	}
	if a == b {
		t.Errorf("generateULID() returned %q twice", a)
	}
}

func TestRootError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorCode
	}{
		{"missing", fmt.Errorf("resolving: %w", os.ErrNotExist), errors.ErrRootNotFound},
		{"not a directory", fmt.Errorf("resolving: %w", scan.ErrRootNotDir), errors.ErrRootNotFound},
		{"other", fmt.Errorf("permission denied"), errors.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := rootError("/x", tt.err); !errors.Is(err, tt.want) {
				t.Errorf("rootError() = %v, want code %s", err, tt.want)
			}
		})
	}
}
