// Package ccrerr defines the typed error kinds used across the router
// engine, modeled after engine/core.Error in the upstream orchestrator: a
// message/code/details triple that still unwraps to the original cause.
package ccrerr

import "fmt"

// Code identifies the class of failure a caller needs to branch on.
type Code string

const (
	// NotFound means a project/agent/workflow identity is unknown. Routers
	// recover locally by falling through to the next priority step.
	NotFound Code = "not_found"
	// Invalid means a malformed UUID, bad model string, bad path, or schema
	// violation. Surfaced to the caller with an actionable message.
	Invalid Code = "invalid"
	// Perm means a filesystem write was denied. Never retried.
	Perm Code = "perm"
	// Exists means a duplicate project path was given to AddProject.
	Exists Code = "exists"
	// IO means a transient filesystem or parse error.
	IO Code = "io"
	// Network means a transient downstream error, retryable by engine/retry.
	Network Code = "network"
	// Invariant means an internal inconsistency, e.g. a UUID collision
	// discovered during a scan. Fatal for the operation.
	Invariant Code = "invariant"
)

// Error is the typed error carried across the engine's package boundaries.
type Error struct {
	Message string
	Code    Code
	Details map[string]any
	cause   error
}

// New builds an Error wrapping cause (cause may be nil) under code, with an
// explicit message and optional details for diagnostics.
func New(code Code, message string, cause error, details map[string]any) *Error {
	return &Error{
		Message: message,
		Code:    code,
		Details: details,
		cause:   cause,
	}
}

// Wrap builds an Error whose message is cause.Error(), preserving Unwrap.
func Wrap(code Code, cause error) *Error {
	if cause == nil {
		return &Error{Message: "unknown error", Code: code}
	}
	return &Error{Message: cause.Error(), Code: code, cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether err carries the given code, following Unwrap chains.
func Is(err error, code Code) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			if ce.Code == code {
				return true
			}
			err = ce.cause
			continue
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
