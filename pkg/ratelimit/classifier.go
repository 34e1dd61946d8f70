package ratelimit

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/Sternrassler/fetch-scheduler/pkg/scheduler"
)

// StatusError is attached to results built from an HTTP status alone.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// HTTPClassifier maps an HTTP exchange to a scheduler result.
type HTTPClassifier struct {
	// Remaining extracts the provider's remaining count (nil = none).
	Remaining RemainingParser

	// RejectStatuses are treated as over-limit rejections (default 429).
	RejectStatuses []int

	// RetryServerErrors treats 5xx responses like transport failures.
	RetryServerErrors bool

	// Now is used to resolve HTTP-date Retry-After values (default time.Now).
	Now func() time.Time
}

// Classify turns (resp, err) from an http.Client call into a scheduler result.
// The *http.Response is carried in Result.Value; any status the classifier
// does not treat as retriable is a success the caller must judge itself.
func (c HTTPClassifier) Classify(resp *http.Response, err error) scheduler.Result {
	if err != nil {
		return scheduler.TransportFailure(err)
	}
	if resp == nil {
		return scheduler.TransportFailure(fmt.Errorf("nil response"))
	}

	var res scheduler.Result
	switch {
	case c.isReject(resp.StatusCode):
		retryAfter, _ := ParseRetryAfter(resp.Header, c.now())
		res = scheduler.Rejected(resp, retryAfter)
		res.Err = &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	case c.RetryServerErrors && resp.StatusCode >= 500:
		res = scheduler.Result{
			Kind:  scheduler.KindTransport,
			Value: resp,
			Err:   &StatusError{StatusCode: resp.StatusCode, Status: resp.Status},
		}
	default:
		res = scheduler.Success(resp)
	}

	if c.Remaining != nil {
		if info, ok := c.Remaining(resp.Header); ok {
			res = res.WithRemaining(info.Remaining)
		}
	}
	return res
}

func (c HTTPClassifier) isReject(status int) bool {
	if len(c.RejectStatuses) == 0 {
		return status == http.StatusTooManyRequests
	}
	return slices.Contains(c.RejectStatuses, status)
}

func (c HTTPClassifier) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
