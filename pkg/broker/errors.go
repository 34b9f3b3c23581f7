package broker

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates adapter failures. The kind survives through every
// layer; only the HTTP boundary flattens it into a response.
type ErrorKind string

const (
	ErrSubprocess ErrorKind = "subprocess_failure"
	ErrParse      ErrorKind = "parse_failure"
	ErrNetwork    ErrorKind = "network_failure"
	ErrRejected   ErrorKind = "broker_rejected"
	ErrTimeout    ErrorKind = "timeout"
)

// Error is the typed failure every adapter operation returns instead of
// letting anything escape raw.
type Error struct {
	Kind        ErrorKind
	Broker      Kind
	Op          string
	Detail      string
	RateLimited bool
	Err         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s/%s: %s", e.Broker, e.Op, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a caller may reasonably retry the operation.
// Timeouts and transient network failures are retryable; rejections and
// protocol violations are not.
func (e *Error) Retryable() bool {
	return e.Kind == ErrTimeout || e.Kind == ErrNetwork
}

// Message returns the human-readable detail, falling back to the wrapped
// error and finally the kind itself.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// NewError builds a typed adapter error.
func NewError(kind ErrorKind, b Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Broker: b, Op: op, Detail: detail, Err: err}
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
