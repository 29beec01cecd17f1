// Package domain provides the conversation types and the error taxonomy shared
// by the upstream client, the capability registry and the tool loop.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a failure.
type ErrorKind string

const (
	// ErrorKindTransport indicates the backend was unreachable or the connection dropped.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindUpstreamBackend indicates the backend answered with a non-2xx status.
	ErrorKindUpstreamBackend ErrorKind = "upstream_backend"

	// ErrorKindDecode indicates streamed output could not be parsed after the stream ended.
	ErrorKindDecode ErrorKind = "decode"

	// ErrorKindUnknownCapability indicates a tool call named an unregistered capability.
	ErrorKindUnknownCapability ErrorKind = "unknown_capability"

	// ErrorKindInvalidArguments indicates required tool parameters were missing or unreadable.
	ErrorKindInvalidArguments ErrorKind = "invalid_arguments"

	// ErrorKindCapabilityFailed indicates the capability itself failed (e.g. data provider down).
	ErrorKindCapabilityFailed ErrorKind = "capability_failed"

	// ErrorKindInvalidRequest indicates a malformed inbound request.
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrTransport         = &Error{Kind: ErrorKindTransport}
	ErrUpstreamBackend   = &Error{Kind: ErrorKindUpstreamBackend}
	ErrDecode            = &Error{Kind: ErrorKindDecode}
	ErrUnknownCapability = &Error{Kind: ErrorKindUnknownCapability}
	ErrInvalidArguments  = &Error{Kind: ErrorKindInvalidArguments}
	ErrCapabilityFailed  = &Error{Kind: ErrorKindCapabilityFailed}
	ErrInvalidRequest    = &Error{Kind: ErrorKindInvalidRequest}
)

// Error is the canonical error type of the shim.
type Error struct {
	// Kind is the category of error
	Kind ErrorKind

	// Message is the human-readable error message
	Message string

	// StatusCode is the backend status for upstream_backend errors, or a suggested HTTP status
	StatusCode int

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindInvalidRequest:
		return http.StatusBadRequest
	case ErrorKindTransport, ErrorKindUpstreamBackend, ErrorKindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a new error of the given kind wrapping cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WithStatusCode sets a specific HTTP status code.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// KindOf returns the kind of err, or "" when err carries no *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transport-class failure that a fresh
// upstream call may cure.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case ErrorKindTransport, ErrorKindUpstreamBackend:
		return true
	}
	return false
}
