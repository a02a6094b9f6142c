package canvas

import (
	"errors"
	"fmt"
)

// ErrorCode categorises domain failures.
type ErrorCode string

const (
	// ErrCodeValidation marks malformed input rejected before any log mutation.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound marks an operation on a canvas with no history.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConcurrencyConflict marks two writers claiming the same sequence
	// number. Per-canvas serialization makes this unreachable; seeing it is fatal.
	ErrCodeConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"

	// ErrCodeExternal marks a failed encoder run or asset API call.
	ErrCodeExternal ErrorCode = "EXTERNAL_FAILURE"

	// ErrCodeInconsistentLog marks a log with deltas but no preceding snapshot.
	ErrCodeInconsistentLog ErrorCode = "INCONSISTENT_LOG"
)

// Error is the typed failure returned across package boundaries.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// CanvasID identifies the affected canvas, if any.
	CanvasID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.CanvasID != "" {
		msg = fmt.Sprintf("%s (canvas=%s)", msg, e.CanvasID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation Error.
func NewValidationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

// NewNotFoundError creates an Error for a canvas without history.
func NewNotFoundError(canvasID string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: "canvas has no history", CanvasID: canvasID}
}

// NewConflictError creates an Error for a duplicate sequence number.
func NewConflictError(canvasID string, seq int64, err error) *Error {
	return &Error{
		Code:     ErrCodeConcurrencyConflict,
		Message:  "sequence number already taken",
		CanvasID: canvasID,
		Details:  map[string]string{"seq": fmt.Sprintf("%d", seq)},
		Err:      err,
	}
}

// NewExternalError wraps a failure of an external collaborator.
func NewExternalError(msg string, err error) *Error {
	return &Error{Code: ErrCodeExternal, Message: msg, Err: err}
}

// NewInconsistentLogError creates an Error for a log missing its base snapshot.
func NewInconsistentLogError(canvasID string, seq int64) *Error {
	return &Error{
		Code:     ErrCodeInconsistentLog,
		Message:  "no snapshot precedes delta",
		CanvasID: canvasID,
		Details:  map[string]string{"seq": fmt.Sprintf("%d", seq)},
	}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsConflict reports whether err is a concurrency conflict.
func IsConflict(err error) bool { return hasCode(err, ErrCodeConcurrencyConflict) }

// IsExternal reports whether err is an external-service failure.
func IsExternal(err error) bool { return hasCode(err, ErrCodeExternal) }

// IsInconsistentLog reports whether err is an inconsistent-log error.
func IsInconsistentLog(err error) bool { return hasCode(err, ErrCodeInconsistentLog) }
