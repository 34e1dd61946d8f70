package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/fetch-scheduler/pkg/ratelimit"
	"github.com/Sternrassler/fetch-scheduler/pkg/scheduler"
)

// ErrorClass represents a classification of failed requests.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents over-limit rejections (429 by default).
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassCancelled represents a caller that gave up.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// APIError represents a failed provider call with additional context.
type APIError struct {
	Provider   string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s error (status %d): %s: %v",
			e.Provider, e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s error (status %d): %s",
		e.Provider, e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps a final HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyTerminal picks the error class for a scheduler error and the
// last result it carried.
func classifyTerminal(res scheduler.Result, err error) ErrorClass {
	if errors.Is(err, scheduler.ErrCancelled) {
		return ErrorClassCancelled
	}
	switch res.Kind {
	case scheduler.KindRejected:
		return ErrorClassRateLimit
	case scheduler.KindTransport:
		var statusErr *ratelimit.StatusError
		if errors.As(res.Err, &statusErr) {
			return ErrorClassServer
		}
		return ErrorClassNetwork
	}
	return ErrorClassNetwork
}
