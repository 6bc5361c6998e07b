package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/db"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/report"
)

// Report formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ReportInput selects what to render. Exactly one of PlanPath or RunID.
type ReportInput struct {
	PlanPath string
	RunID    string
	Format   string // markdown (default) or html
}

// ReportOutput contains a rendered report.
type ReportOutput struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

// Report renders a plan file or a recorded run as markdown or HTML.
func Report(database *sql.DB, cfg *config.Config, input ReportInput) (*ReportOutput, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatHTML {
		return nil, errors.NewInvalidRequest("format must be markdown or html")
	}

	hasPath := input.PlanPath != ""
	hasRun := input.RunID != ""
	if hasPath == hasRun {
		return nil, errors.NewInvalidRequest("specify exactly one of plan_path or run_id")
	}

	var md string
	if hasPath {
		doc, err := readPlanFile(cfg, input.PlanPath)
		if err != nil {
			return nil, err
		}
		md = report.PlanMarkdown(doc.Header, doc.Entries)
	} else {
		if database == nil {
			return nil, errors.NewInvalidRequest("run history is not available")
		}
		run, err := db.GetRun(database, input.RunID)
		if err != nil {
			return nil, err
		}
		md = run.Report
	}

	if format == FormatMarkdown {
		return &ReportOutput{Format: format, Content: md}, nil
	}
	html, err := report.HTML(md)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ReportOutput{Format: format, Content: html}, nil
}
