package ops

import (
	"crypto/rand"
	stderrors "errors"
	"io/fs"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/scan"
)

// Pagination limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// rootError maps a failure to open the scan or source root onto a SweepError.
func rootError(root string, err error) error {
	if stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, scan.ErrRootNotDir) {
		return errors.NewRootNotFound(root)
	}
	return errors.NewInternal(err)
}
