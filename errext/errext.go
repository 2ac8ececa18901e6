// Package errext provides hints and exit codes that can be attached to any
// error and recovered further up the call stack via errors.As, without the
// core pipeline or plugins needing to import the CLI layer.
package errext

import (
	"errors"
	"fmt"

	"github.com/alumet-dev/alumet/errext/exitcodes"
)

// HasHint is implemented by errors that carry a user-facing hint.
type HasHint interface {
	error
	Hint() string
}

// HasExitCode is implemented by errors that dictate the process exit code.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

// Exception is implemented by errors that carry a full stack trace and an
// abort reason, typically produced by a plugin panic turned into an error.
type Exception interface {
	error
	StackTrace() string
	AbortReason() AbortReason
}

// AbortReason classifies why the agent is aborting.
type AbortReason uint8

const (
	AbortReasonNone AbortReason = iota
	AbortReasonInternalError
	AbortReasonPluginError
)

type hintedError struct {
	error
	hint string
}

func (e hintedError) Hint() string {
	return e.hint
}

func (e hintedError) Unwrap() error {
	return e.error
}

// WithHint wraps err so that the given hint is attached to it. If err
// already carries a hint, the hints compose as "hint (previous hint)". A
// nil err returns nil.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}

	var prev HasHint
	if errors.As(err, &prev) {
		hint = fmt.Sprintf("%s (%s)", hint, prev.Hint())
	}

	return hintedError{error: err, hint: hint}
}

type exitCodeError struct {
	error
	exitCode exitcodes.ExitCode
}

func (e exitCodeError) ExitCode() exitcodes.ExitCode {
	return e.exitCode
}

func (e exitCodeError) Unwrap() error {
	return e.error
}

// WithExitCodeIfNone wraps err with the given exit code, unless err (or
// something it wraps) already has one, in which case the existing exit code
// is preserved. A nil err returns nil.
func WithExitCodeIfNone(err error, exitCode exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}

	var existing HasExitCode
	if errors.As(err, &existing) {
		return exitCodeError{error: err, exitCode: existing.ExitCode()}
	}

	return exitCodeError{error: err, exitCode: exitCode}
}
