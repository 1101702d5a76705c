// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package derrors defines the error taxonomy used across the catalog
// reader and mirror: a small set of sentinel errors that every other
// package wraps context onto, plus helpers for doing that wrapping
// consistently.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

//lint:file-ignore ST1012 prefixing error values with Err would stutter

var (
	// NotFound indicates that a requested resource was not found (HTTP 404).
	NotFound = errors.New("not found")

	// InvalidArgument indicates that the input to an operation is invalid
	// in some way: a malformed CLI flag, an id/version that doesn't parse.
	InvalidArgument = errors.New("invalid argument")

	// TransportRetryable indicates an HTTP error other than 404 that may
	// succeed if retried (5xx, connection reset, timeout).
	TransportRetryable = errors.New("transport error, retryable")

	// ContentInvalid indicates a fetched document failed validation: JSON
	// that doesn't parse as an object, a zip that won't open, an XML
	// manifest that doesn't parse.
	ContentInvalid = errors.New("content invalid")

	// ConfigurationError indicates a service index (or CLI configuration)
	// is missing a resource the reader requires.
	ConfigurationError = errors.New("configuration error")

	// IOError indicates a local disk-side failure while writing or reading
	// mirror output.
	IOError = errors.New("io error")

	// Canceled indicates the operation's context was canceled.
	Canceled = errors.New("canceled")
)

var codes = []struct {
	err  error
	code int
}{
	{NotFound, http.StatusNotFound},
	{InvalidArgument, http.StatusBadRequest},
	{ConfigurationError, http.StatusUnprocessableEntity},
	{ContentInvalid, http.StatusUnprocessableEntity},
	{TransportRetryable, http.StatusBadGateway},
	{IOError, 550}, // not a real HTTP status
	{Canceled, 499},
}

// ToStatus returns a status code corresponding to err, for logging and
// diagnostics purposes only (the mirror has no HTTP surface of its own).
func ToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, e := range codes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return http.StatusInternalServerError
}

// Add adds context to the error. The result cannot be unwrapped to recover
// the original error. It does nothing when *errp == nil.
//
// Example:
//
//	defer derrors.Add(&err, "fetchJSON(%q)", uri)
//
// See Wrap for an equivalent function that allows unwrapping.
func Add(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = fmt.Errorf("%s: %v", fmt.Sprintf(format, args...), *errp)
	}
}

// Wrap adds context to the error and allows unwrapping the result to
// recover the original error.
func Wrap(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), *errp)
	}
}

// WrapStack is like Wrap, but attaches a stack trace if one isn't already
// present on the error.
func WrapStack(errp *error, format string, args ...any) {
	if *errp != nil {
		if se := (*StackError)(nil); !errors.As(*errp, &se) {
			*errp = NewStackError(*errp)
		}
		Wrap(errp, format, args...)
	}
}

// StackError wraps an error and records a stack trace captured at the
// point it was first wrapped.
type StackError struct {
	Stack []byte
	err   error
}

// NewStackError returns a StackError, capturing the current stack.
func NewStackError(err error) *StackError {
	var buf [16 * 1024]byte
	n := runtime.Stack(buf[:], false)
	return &StackError{err: err, Stack: buf[:n]}
}

func (e *StackError) Error() string { return e.err.Error() }
func (e *StackError) Unwrap() error { return e.err }

// WrapAndReport calls Wrap followed by Report.
func WrapAndReport(errp *error, format string, args ...any) {
	Wrap(errp, format, args...)
	if *errp != nil {
		Report(*errp)
	}
}

var reporter Reporter

// SetReporter sets the Reporter used by Report. Passing nil disables
// reporting (the default).
func SetReporter(r Reporter) { reporter = r }

// Reporter reports errors to an external collector, e.g.
// cloud.google.com/go/errorreporting.
type Reporter interface {
	Report(err error, req *http.Request, stack []byte)
}

// Report sends err to the configured Reporter, if any.
func Report(err error) {
	if reporter != nil {
		reporter.Report(err, nil, nil)
	}
}

// IsRetryable reports whether an error should be retried by a caller that
// has its own retry/backoff policy (the mirror task loop, the Fetch
// Fabric's internal retry).
func IsRetryable(err error) bool {
	return errors.Is(err, TransportRetryable)
}
