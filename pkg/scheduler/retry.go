package scheduler

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff computes the wait between a retriable failure and the next attempt.
type Backoff struct {
	// DefaultRetryAfter is used for rejections without a provider hint.
	DefaultRetryAfter time.Duration

	// TransportBackoff is used after transport failures.
	TransportBackoff time.Duration

	// Multiplier grows the base delay per attempt (1 keeps it fixed).
	Multiplier float64

	// Max caps computed delays, jitter included (0 = no cap).
	Max time.Duration

	// Jitter adds ±Jitter randomness to computed delays.
	Jitter float64
}

// Delay returns the wait after the given 1-based failed attempt.
// A provider retry-after hint is returned as-is.
func (b Backoff) Delay(attempt int, res Result) time.Duration {
	if res.Kind == KindRejected && res.RetryAfter > 0 {
		return res.RetryAfter
	}

	base := b.DefaultRetryAfter
	if res.Kind == KindTransport {
		base = b.TransportBackoff
	}
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	ceil := time.Duration(math.MaxInt64)
	if b.Max > 0 {
		ceil = b.Max
	}

	// Computed in float64 so large attempts saturate instead of wrapping.
	d := float64(base) * math.Pow(mult, float64(attempt-1))
	if b.Jitter > 0 {
		d *= 1 - b.Jitter + rand.Float64()*2*b.Jitter
	}
	if d >= float64(ceil) {
		return ceil
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// Schedule lists the delays for maxRetries consecutive failures of one kind
// without provider hints. Jitter is ignored.
func (b Backoff) Schedule(kind Kind, maxRetries int) []time.Duration {
	nb := b
	nb.Jitter = 0
	out := make([]time.Duration, 0, maxRetries)
	for attempt := 1; attempt <= maxRetries; attempt++ {
		out = append(out, nb.Delay(attempt, Result{Kind: kind}))
	}
	return out
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
