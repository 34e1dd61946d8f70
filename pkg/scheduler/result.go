package scheduler

import (
	"context"
	"time"
)

// Kind classifies the result of a single task attempt.
type Kind int

const (
	// KindSuccess is any response the caller wants back, whatever its status.
	KindSuccess Kind = iota

	// KindRejected is an over-limit rejection (e.g. HTTP 429). Retried.
	KindRejected

	// KindTransport is a network or connection failure. Retried.
	KindTransport

	// KindFailure is a non-retriable failure. Returned immediately.
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRejected:
		return "rejected"
	case KindTransport:
		return "transport"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

func (k Kind) retriable() bool {
	return k == KindRejected || k == KindTransport
}

// Task performs exactly one network call and classifies its result.
type Task func(ctx context.Context) Result

// Result is what a Task reports back to the scheduler.
type Result struct {
	Kind Kind

	// Value is the response-like payload handed back to the caller.
	Value any

	// RetryAfter is the provider-suggested wait before retrying (0 = absent).
	RetryAfter time.Duration

	// Remaining is the provider-reported remaining request count.
	// Only meaningful when HasRemaining is set.
	Remaining    int
	HasRemaining bool

	Err error
}

// Success wraps a response the caller should receive.
func Success(v any) Result {
	return Result{Kind: KindSuccess, Value: v}
}

// Rejected reports an over-limit rejection with an optional retry-after hint.
func Rejected(v any, retryAfter time.Duration) Result {
	return Result{Kind: KindRejected, Value: v, RetryAfter: retryAfter}
}

// TransportFailure reports a network-level failure.
func TransportFailure(err error) Result {
	return Result{Kind: KindTransport, Err: err}
}

// Failure reports a non-retriable failure.
func Failure(v any, err error) Result {
	return Result{Kind: KindFailure, Value: v, Err: err}
}

// WithRemaining attaches a remaining-count hint.
func (r Result) WithRemaining(n int) Result {
	r.Remaining = n
	r.HasRemaining = true
	return r
}
