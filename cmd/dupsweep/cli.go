package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/ops"
	"github.com/hpungsan/dupsweep/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "dupsweep",
		Usage:   "Find duplicate files and move them to quarantine",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Log debug details to stderr"},
		},
		Before: func(c *cli.Context) error {
			setupLogging(os.Stderr, c.Bool("verbose"))
			return nil
		},
		Commands: []*cli.Command{
			detectCmd(db, cfg),
			inspectCmd(cfg),
			applyCmd(db, cfg),
			reportCmd(db, cfg),
			historyCmd(db),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// detectCmd creates the detect command.
func detectCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "Find duplicate files under a directory and write a plan",
		ArgsUsage: "<root>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "plan", Aliases: []string{"o"}, Usage: "Plan file path (.txt); default ~/.dupsweep/plans/<plan_id>.txt"},
			&cli.BoolFlag{Name: "no-write", Usage: "Report counts only; do not write a plan"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one root directory is required"))
			}

			output, err := ops.Detect(contextOf(c), db, cfg, ops.DetectInput{
				Root:     c.Args().First(),
				PlanPath: c.String("plan"),
				NoWrite:  c.Bool("no-write"),
				Progress: newProgress(os.Stderr),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// inspectCmd creates the inspect command.
func inspectCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Preview what applying a plan would move",
		ArgsUsage: "<plan>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one plan file is required"))
			}

			output, err := ops.Inspect(cfg, ops.InspectInput{PlanPath: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// applyCmd creates the apply command.
func applyCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Move the DUPLICATE entries of a plan into a quarantine directory",
		Description: "Without --yes, apply asks for confirmation when stdin is a terminal " +
			"and otherwise only previews (dry run).",
		ArgsUsage: "<plan>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source-root", Usage: "Root the plan paths are relative to (default: plan header root)"},
			&cli.StringFlag{Name: "quarantine", Aliases: []string{"q"}, Usage: "Quarantine directory (default: <source_root>/duplicates-<timestamp>)"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Move without asking"},
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Only compute destinations"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one plan file is required"))
			}

			input := ops.ApplyInput{
				PlanPath:       c.Args().First(),
				SourceRoot:     c.String("source-root"),
				QuarantineRoot: c.String("quarantine"),
				DryRun:         c.Bool("dry-run"),
			}
			if !input.DryRun && !c.Bool("yes") {
				if stdinIsTerminal() {
					input.Confirm = promptConfirm(os.Stdin, os.Stderr)
				} else {
					input.DryRun = true
				}
			}

			output, err := ops.Apply(contextOf(c), db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// reportCmd creates the report command.
func reportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print a human-readable report for a plan file or a recorded run",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "plan", Usage: "Plan file to summarize"},
			&cli.StringFlag{Name: "run", Usage: "Recorded run ID"},
			&cli.BoolFlag{Name: "html", Usage: "Render HTML instead of markdown"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ReportInput{
				PlanPath: c.String("plan"),
				RunID:    c.String("run"),
				Format:   ops.FormatMarkdown,
			}
			if c.Bool("html") {
				input.Format = ops.FormatHTML
			}

			output, err := ops.Report(db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			_, err = io.WriteString(os.Stdout, output.Content)
			return err
		},
	}
}

// historyCmd creates the history command.
func historyCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded detect and apply runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by kind: detect|apply"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(db, ops.HistoryInput{
				Kind:   c.String("kind"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browse run history and reports in a local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.SweepError
	if stderrors.As(err, &sErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// contextOf returns the command context, or Background when run without one.
func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}

// stdinIsTerminal returns true if stdin is an interactive terminal.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptConfirm returns a Confirmer that asks on out and reads y/N from in.
func promptConfirm(in io.Reader, out io.Writer) ops.Confirmer {
	return func(p ops.Preview) bool {
		fmt.Fprintf(out, "Move %s files (%s) from %s\n  to %s",
			humanize.Comma(int64(p.Stats.Duplicates)), humanize.IBytes(uint64(p.Stats.ReclaimableBytes)),
			p.SourceRoot, p.QuarantineRoot)
		if p.Malformed > 0 {
			fmt.Fprintf(out, "\n  (%d malformed plan lines will be skipped)", p.Malformed)
		}
		fmt.Fprint(out, "\nProceed? [y/N] ")

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
