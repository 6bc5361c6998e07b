package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/hpungsan/dupsweep/internal/dedup"
	"github.com/hpungsan/dupsweep/internal/scan"
)

// hashProgress draws a progress bar on stderr while candidates are hashed.
type hashProgress struct {
	out *os.File
	bar *progressbar.ProgressBar
}

// newProgress returns a bar-drawing dedup.Progress when out is a terminal.
func newProgress(out *os.File) dedup.Progress {
	if out == nil || !term.IsTerminal(int(out.Fd())) {
		return dedup.NopProgress{}
	}
	return &hashProgress{out: out}
}

func (p *hashProgress) Scanned(stats scan.Stats) {
	slog.Debug("scan finished", "files", stats.Files, "candidates", stats.Candidates, "excluded", stats.Excluded, "skipped", stats.Skipped)
}

func (p *hashProgress) Hashing(total int) {
	if total == 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("hashing"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{Saucer: "#", SaucerPadding: " ", BarStart: "|", BarEnd: "|"}),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *hashProgress) Hashed(path string, err error) {
	if err != nil {
		slog.Debug("hash failed", "path", path, "error", err)
	}
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *hashProgress) Grouped([]dedup.DuplicateSet) {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
