package scheduler

import (
	"fmt"
	"time"
)

// Config holds the immutable scheduler configuration.
type Config struct {
	// Name is a diagnostic label used in logs and metric labels.
	Name string

	// MaxConcurrent is the maximum number of tasks running at the same time.
	MaxConcurrent int

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// MinInterval is the minimum gap between two dispatches (0 disables pacing).
	MinInterval time.Duration

	// RateLimitThreshold is the remaining-count floor below which all
	// dispatches pause for RateLimitPause.
	RateLimitThreshold int

	// RateLimitPause is the length of the pre-emptive pause.
	RateLimitPause time.Duration

	// DefaultRetryAfter is the rejection backoff used when the provider sends no hint.
	DefaultRetryAfter time.Duration

	// TransportBackoff is the backoff used after a transport failure.
	TransportBackoff time.Duration

	// BackoffMultiplier grows computed backoff per retry. 1 keeps it fixed.
	BackoffMultiplier float64

	// MaxBackoff caps computed backoff. Provider hints are never capped.
	MaxBackoff time.Duration

	// Jitter randomizes computed backoff by ±Jitter (0 disables).
	Jitter float64

	// RatePerSecond caps the sustained dispatch rate (0 disables).
	RatePerSecond float64

	// Burst is the token bucket size used with RatePerSecond.
	Burst int
}

// DefaultConfig returns the default configuration for the named API.
func DefaultConfig(name string) Config {
	if name == "" {
		name = "API"
	}
	return Config{
		Name:               name,
		MaxConcurrent:      3,
		MaxRetries:         3,
		MinInterval:        0,
		RateLimitThreshold: 50,
		RateLimitPause:     10 * time.Second,
		DefaultRetryAfter:  2 * time.Second,
		TransportBackoff:   2 * time.Second,
		BackoffMultiplier:  1,
		MaxBackoff:         60 * time.Second,
		Burst:              1,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MaxConcurrent < 1:
		return fmt.Errorf("%w: max_concurrent must be >= 1 (got %d)", ErrInvalidConfig, c.MaxConcurrent)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must be >= 0 (got %d)", ErrInvalidConfig, c.MaxRetries)
	case c.MinInterval < 0:
		return fmt.Errorf("%w: min_interval must be >= 0 (got %v)", ErrInvalidConfig, c.MinInterval)
	case c.RateLimitPause < 0:
		return fmt.Errorf("%w: rate_limit_pause must be >= 0 (got %v)", ErrInvalidConfig, c.RateLimitPause)
	case c.DefaultRetryAfter < 0, c.TransportBackoff < 0, c.MaxBackoff < 0:
		return fmt.Errorf("%w: backoff durations must be >= 0", ErrInvalidConfig)
	case c.BackoffMultiplier < 1:
		return fmt.Errorf("%w: backoff_multiplier must be >= 1 (got %v)", ErrInvalidConfig, c.BackoffMultiplier)
	case c.Jitter < 0 || c.Jitter >= 1:
		return fmt.Errorf("%w: jitter must be in [0, 1) (got %v)", ErrInvalidConfig, c.Jitter)
	case c.RatePerSecond < 0:
		return fmt.Errorf("%w: rate_per_second must be >= 0 (got %v)", ErrInvalidConfig, c.RatePerSecond)
	case c.RatePerSecond > 0 && c.Burst < 1:
		return fmt.Errorf("%w: burst must be >= 1 when rate_per_second is set (got %d)", ErrInvalidConfig, c.Burst)
	}
	return nil
}

func (c Config) backoff() Backoff {
	return Backoff{
		DefaultRetryAfter: c.DefaultRetryAfter,
		TransportBackoff:  c.TransportBackoff,
		Multiplier:        c.BackoffMultiplier,
		Max:               c.MaxBackoff,
		Jitter:            c.Jitter,
	}
}
