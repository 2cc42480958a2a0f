// Package etlerrors provides the typed error taxonomy shared by every pipeline
// step. Each error carries a category, a message, an optional cause, free-form
// details and the call stack captured where it was created.
//
// Basic usage:
//
//	if len(postIDs) == 0 {
//	    return etlerrors.New(etlerrors.ErrorTypeValidation, "no post ids")
//	}
//
//	if err := tx.Commit(); err != nil {
//	    return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "commit failed").
//	        WithDetail("table", table)
//	}
//
// The category drives the orchestrator's retry decision: see IsRetryable.
package etlerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType is the category of a pipeline failure.
type ErrorType string

const (
	// ErrorTypeConfig is a missing or malformed configuration value. Fatal at startup.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeAuthentication is a rejected API or warehouse credential.
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeConnection is a network, object store or warehouse transport failure.
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeRateLimit is an upstream throttling response.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeTimeout is a deadline exceeded while talking to a remote system.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeData is a malformed artifact or a failed cast.
	ErrorTypeData ErrorType = "data"
	// ErrorTypeValidation is a caller error: unknown column, bad window keyword, bad extension.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound is an absent artifact or key.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeStale is an input artifact older than the current calendar week.
	ErrorTypeStale ErrorType = "stale"
	// ErrorTypeInternal is anything else.
	ErrorTypeInternal ErrorType = "internal"
)

// Error is a categorized pipeline error.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is one frame of the stack captured at creation time.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key/value pair and returns the same error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a format string.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps err with a type and message. The stack of an already typed cause
// is kept. Wrap returns nil for a nil err.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, errType, fmt.Sprintf(format, args...))
	if wrapped.Stack == nil {
		wrapped.Stack = captureStack(2)
	}
	return wrapped
}

// TypeOf returns the outermost category in err's chain, or ErrorTypeInternal
// when err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// IsRetryable reports whether a step failing with err may be rerun. Config,
// authentication and validation failures are fatal; every other failure,
// including one carrying no category, is retried within the budget.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeConfig, ErrorTypeAuthentication, ErrorTypeValidation:
		return false
	default:
		return true
	}
}

// IsType reports whether any error in err's chain has the given category.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
