package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/dupsweep/internal/dedup"
	"github.com/hpungsan/dupsweep/internal/scan"
)

func TestNewProgress_NotTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()

	if _, ok := newProgress(f).(dedup.NopProgress); !ok {
		t.Error("expected NopProgress for a regular file")
	}
	if _, ok := newProgress(nil).(dedup.NopProgress); !ok {
		t.Error("expected NopProgress for nil")
	}
}

func TestHashProgress_DrawsBar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()

	p := &hashProgress{out: f}
	p.Scanned(scan.Stats{Files: 2, Candidates: 2})
	p.Hashing(2)
	p.Hashed("a", nil)
	p.Hashed("b", os.ErrPermission)
	p.Grouped(nil)

	if p.bar == nil {
		t.Fatal("expected a bar after Hashing")
	}
	if !p.bar.IsFinished() {
		t.Error("expected bar finished after Grouped")
	}
}

func TestHashProgress_NoCandidates(t *testing.T) {
	p := &hashProgress{out: os.Stderr}
	p.Hashing(0)
	p.Hashed("a", nil)
	p.Grouped(nil)
	if p.bar != nil {
		t.Error("expected no bar when nothing is hashed")
	}
}
