package exchange

import (
	"context"
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: timeouts, rate limits,
// 5xx responses. The trading loop absorbs these and moves to the next tick.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: transient: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that cannot be recovered by retrying, such as
// rejected credentials. The trading loop force-closes and terminates.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: fatal: %v", e.Op, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(op string, err error) error { return &TransientError{Op: op, Err: err} }

// Fatal wraps err as a FatalError.
func Fatal(op string, err error) error { return &FatalError{Op: op, Err: err} }

// IsTransient reports whether err is retryable. Untyped errors are treated
// as transient so a missing classification never kills the process.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsFatal(err) {
		return false
	}
	return true
}

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsCanceled reports whether err came from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
