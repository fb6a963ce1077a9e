package tool

import (
	"fmt"

	"factotum/internal/domain"
)

// Result is the tagged outcome of one tool invocation. Exactly one of Value
// and Err is meaningful. Failures are data, never panics or returned errors:
// the oracle loop reasons over them as text.
type Result struct {
	Value string
	Err   *Error
}

// Error describes a failed invocation with its classification.
type Error struct {
	Kind    domain.ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func Ok(value string) Result {
	return Result{Value: value}
}

func Fail(kind domain.ErrorKind, message string, cause error) Result {
	return Result{Err: &Error{Kind: kind, Message: message, Cause: cause}}
}

func (r Result) OK() bool { return r.Err == nil }

// Text renders the payload handed back to the oracle as the tool-response
// message, for success and failure alike.
func (r Result) Text() string {
	if r.Err == nil {
		return r.Value
	}
	return fmt.Sprintf("Error (%s): %s", r.Err.Kind, r.Err.Message)
}
