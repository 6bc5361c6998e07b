package mcp

import "github.com/mark3labs/mcp-go/mcp"

var detectToolDef = mcp.NewTool("dupes_detect",
	mcp.WithDescription("Scan a directory tree for files with identical content and write an action list "+
		"(one KEEP line and one or more DUPLICATE lines per set). Nothing is moved."),
	mcp.WithString("root", mcp.Required(), mcp.Description("Directory to scan")),
	mcp.WithString("plan_path", mcp.Description("Where to write the plan (.txt). Defaults to ~/.dupsweep/plans/<plan_id>.txt")),
	mcp.WithBoolean("no_write", mcp.Description("Return counts only; do not write a plan file")),
)

var inspectToolDef = mcp.NewTool("dupes_inspect",
	mcp.WithDescription("Read a plan file and list the DUPLICATE entries apply would move, with counts and malformed lines."),
	mcp.WithString("plan_path", mcp.Required(), mcp.Description("Plan file written by dupes_detect")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var applyToolDef = mcp.NewTool("dupes_apply",
	mcp.WithDescription("Move the DUPLICATE entries of a plan into a quarantine directory, keeping their paths "+
		"relative to the source root. Existing files are never overwritten. Runs as a dry run unless confirm is true."),
	mcp.WithString("plan_path", mcp.Required(), mcp.Description("Plan file written by dupes_detect")),
	mcp.WithString("source_root", mcp.Description("Root the plan paths are relative to. Defaults to the plan header root")),
	mcp.WithString("quarantine_root", mcp.Description("Destination directory. Defaults to <source_root>/duplicates-<timestamp>")),
	mcp.WithBoolean("confirm", mcp.Description("Actually move files. Without it only destinations are computed")),
	mcp.WithDestructiveHintAnnotation(true),
)

var reportToolDef = mcp.NewTool("dupes_report",
	mcp.WithDescription("Render a plan file or a recorded run as markdown or HTML. Specify exactly one of plan_path or run_id."),
	mcp.WithString("plan_path", mcp.Description("Plan file to summarize")),
	mcp.WithString("run_id", mcp.Description("ID of a recorded detect or apply run")),
	mcp.WithString("format", mcp.Description("markdown (default) or html"), mcp.Enum("markdown", "html")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var historyToolDef = mcp.NewTool("dupes_history",
	mcp.WithDescription("List recorded detect and apply runs, newest first."),
	mcp.WithString("kind", mcp.Description("Filter by run kind"), mcp.Enum("detect", "apply")),
	mcp.WithNumber("limit", mcp.Description("Max results (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Pagination offset")),
	mcp.WithReadOnlyHintAnnotation(true),
)
