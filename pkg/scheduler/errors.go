package scheduler

import (
	"errors"
	"fmt"
)

// Common errors returned by the scheduler.
var (
	// ErrRetryExhausted is returned when every retry ended in a retriable failure.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrRejected marks an over-limit rejection reported without a task error.
	ErrRejected = errors.New("rejected by rate limit")

	// ErrCancelled is returned when the context ends at a suspension point.
	ErrCancelled = errors.New("context cancelled")

	// ErrInvalidConfig is returned by New for an invalid Config.
	ErrInvalidConfig = errors.New("invalid scheduler config")
)

// TerminalError is returned for a non-retriable failure or exhausted retries.
type TerminalError struct {
	Scheduler string
	Kind      Kind
	Attempts  int
	Exhausted bool
	Err       error
}

// Error implements the error interface.
func (e *TerminalError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("%s: %v after %d attempts (last %s): %v",
			e.Scheduler, ErrRetryExhausted, e.Attempts, e.Kind, e.cause())
	}
	return fmt.Sprintf("%s: %s after %d attempts: %v", e.Scheduler, e.Kind, e.Attempts, e.cause())
}

// Unwrap exposes ErrRetryExhausted (when exhausted) and the task error.
func (e *TerminalError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Exhausted {
		errs = append(errs, ErrRetryExhausted)
	}
	if c := e.cause(); c != nil {
		errs = append(errs, c)
	}
	return errs
}

func (e *TerminalError) cause() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Kind == KindRejected {
		return ErrRejected
	}
	return nil
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
