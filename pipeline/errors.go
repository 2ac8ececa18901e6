package pipeline

import "errors"

// ErrNormalStop is returned by Source.Poll to indicate the source has
// finished its work and wants its task to exit cleanly. It is not logged as
// an error.
var ErrNormalStop = errors.New("pipeline: source stopped itself")

// RetryableError wraps an error that a Poll/Apply/Write call can recover
// from: the task logs it and keeps running.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error  { return e.Err }

// Retryable wraps err so the owning task logs it and continues.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// FatalError wraps an error that terminates the owning element's task. The
// pipeline as a whole continues running its other elements, except when the
// failing task is the (sole) transform task, which has no path to outputs.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error  { return e.Err }

// Fatal wraps err so the owning task exits and the error is surfaced to
// whoever is waiting on that task (e.g. the agent's shutdown aggregator).
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsRetryable reports whether err was produced by Retryable.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

// IsFatal reports whether err was produced by Fatal.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
