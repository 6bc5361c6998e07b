package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a dupsweep error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrFileNotFound        ErrorCode = "FILE_NOT_FOUND"       // 404
	ErrRootNotFound        ErrorCode = "ROOT_NOT_FOUND"       // 404
	ErrPlanEmpty           ErrorCode = "PLAN_EMPTY"           // 422
	ErrUnrepresentablePath ErrorCode = "UNREPRESENTABLE_PATH" // 422
	ErrCancelled           ErrorCode = "CANCELLED"            // 499
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// SweepError represents a structured error with code, status, and details.
type SweepError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *SweepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SweepError {
	return &SweepError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a run cannot be found.
func NewNotFound(identifier string) *SweepError {
	return &SweepError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("run not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing plan file.
func NewFileNotFound(path string) *SweepError {
	return &SweepError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewRootNotFound creates a 404 error when the directory to scan is missing
// or is not a directory.
func NewRootNotFound(root string) *SweepError {
	return &SweepError{
		Code:    ErrRootNotFound,
		Status:  404,
		Message: fmt.Sprintf("root directory not found: %s", root),
		Details: map[string]any{"root": root},
	}
}

// NewPlanEmpty creates a 422 error when a plan contains nothing to move.
func NewPlanEmpty(source string) *SweepError {
	return &SweepError{
		Code:    ErrPlanEmpty,
		Status:  422,
		Message: fmt.Sprintf("plan contains no DUPLICATE entries: %s", source),
		Details: map[string]any{"source": source},
	}
}

// NewUnrepresentablePath creates a 422 error for a path the action-list format cannot carry.
func NewUnrepresentablePath(path string) *SweepError {
	return &SweepError{
		Code:    ErrUnrepresentablePath,
		Status:  422,
		Message: fmt.Sprintf("path cannot be written to a plan (contains '|' or a line break): %q", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates a 499 error for an operation abandoned by the caller.
func NewCancelled(operation string) *SweepError {
	return &SweepError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *SweepError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &SweepError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a SweepError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SweepError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}
