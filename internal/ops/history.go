package ops

import (
	"database/sql"

	"github.com/hpungsan/dupsweep/internal/db"
	"github.com/hpungsan/dupsweep/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Kind   string // optional: detect or apply
	Limit  int    // optional, default: 20, max: 100
	Offset int    // optional, default: 0
}

// HistoryOutput contains a page of recorded runs.
type HistoryOutput struct {
	Runs       []db.Run   `json:"runs"`
	Pagination Pagination `json:"pagination"`
}

// History lists recorded runs, newest first.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	if input.Kind != "" && input.Kind != db.KindDetect && input.Kind != db.KindApply {
		return nil, errors.NewInvalidRequest("kind must be detect or apply")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	runs, total, err := db.ListRuns(database, db.RunFilter{Kind: input.Kind, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	return &HistoryOutput{
		Runs: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
	}, nil
}

// GetRun returns a single recorded run including its report.
func GetRun(database *sql.DB, id string) (*db.Run, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	return db.GetRun(database, id)
}
