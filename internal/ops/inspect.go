package ops

import (
	"github.com/samber/lo"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/plan"
)

// InspectInput contains parameters for the Inspect operation.
type InspectInput struct {
	PlanPath string // required
}

// InspectOutput previews what applying a plan would do.
type InspectOutput struct {
	PlanPath  string           `json:"plan_path"`
	Header    plan.Header      `json:"header"`
	Stats     plan.Stats       `json:"stats"`
	Malformed []plan.LineError `json:"malformed"`
	ToMove    []plan.Entry     `json:"to_move"`
}

// Inspect reads a plan file and reports its counts, its malformed lines and
// the DUPLICATE entries that apply would move. Nothing is changed on disk.
func Inspect(cfg *config.Config, input InspectInput) (*InspectOutput, error) {
	if input.PlanPath == "" {
		return nil, errors.NewInvalidRequest("plan_path is required")
	}

	doc, err := readPlanFile(cfg, input.PlanPath)
	if err != nil {
		return nil, err
	}

	malformed := doc.Errors
	if malformed == nil {
		malformed = []plan.LineError{}
	}

	return &InspectOutput{
		PlanPath:  input.PlanPath,
		Header:    doc.Header,
		Stats:     plan.Summarize(doc.Entries),
		Malformed: malformed,
		ToMove:    lo.Filter(doc.Entries, func(e plan.Entry, _ int) bool { return e.Action == plan.ActionDuplicate }),
	}, nil
}
