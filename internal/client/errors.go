package client

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Every kind is retried identically; once the retry budget
// is exhausted the last failure is returned wrapped in a *GatewayError.
var (
	ErrTransport = errors.New("transport failure")
	ErrServer    = errors.New("server failure")
	ErrDecode    = errors.New("decode failure")
	ErrRemote    = errors.New("remote application error")
)

// APIError is the error envelope returned by the remote endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// attemptError is the outcome of a single failed attempt.
type attemptError struct {
	kind       error
	diagnostic string
	err        error
}

func (e *attemptError) Error() string {
	if e.diagnostic != "" {
		return fmt.Sprintf("%v: %s", e.kind, e.diagnostic)
	}
	if e.err != nil {
		return fmt.Sprintf("%v: %v", e.kind, e.err)
	}
	return e.kind.Error()
}

// GatewayError is returned when a request exhausted its retry budget.
type GatewayError struct {
	Op         string // "search" or "chat"
	Kind       error  // one of ErrTransport, ErrServer, ErrDecode, ErrRemote
	Attempts   int
	Diagnostic string // most specific detail available: remote message, raw body or transport error
	Err        error  // underlying error, if any
}

func (e *GatewayError) Error() string {
	detail := e.Diagnostic
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if detail == "" {
		return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Kind)
	}
	return fmt.Sprintf("%s failed after %d attempts: %v: %s", e.Op, e.Attempts, e.Kind, detail)
}

// Unwrap exposes both the failure kind and the underlying error to errors.Is/As.
func (e *GatewayError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsOverloaded reports whether err looks like the remote model being overloaded.
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "overloaded")
}

// IsRetryable reports whether err is one of the gateway failure kinds.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrServer) ||
		errors.Is(err, ErrDecode) || errors.Is(err, ErrRemote)
}
