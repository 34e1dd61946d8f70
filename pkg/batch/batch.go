package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
)

// Config holds batch runner configuration.
type Config struct {
	// Size is the number of items started together (default 5).
	Size int

	// Timeout per item call (0 = only the parent context applies).
	Timeout time.Duration

	// LogEvery logs progress every N batches (default 10).
	LogEvery int

	// Label names the run in logs.
	Label string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Size:     5,
		LogEvery: 10,
		Label:    "batch",
	}
}

// Result is the outcome for one input item.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Func performs the call for a single item.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// Run processes items in batches of cfg.Size and returns one Result per item
// in input order.
func Run[T, R any](ctx context.Context, items []T, cfg Config, fn Func[T, R]) []Result[R] {
	if cfg.Size <= 0 {
		cfg.Size = 5
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 10
	}
	if cfg.Label == "" {
		cfg.Label = "batch"
	}

	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	start := time.Now()
	totalBatches := (len(items) + cfg.Size - 1) / cfg.Size
	failed := 0

	log.Debug().
		Str("label", cfg.Label).
		Int("items", len(items)).
		Int("batches", totalBatches).
		Int("batch_size", cfg.Size).
		Msg("Starting batch run")

	for b := 0; b < totalBatches; b++ {
		lo := b * cfg.Size
		hi := min(lo+cfg.Size, len(items))

		if err := ctx.Err(); err != nil {
			for i := lo; i < len(items); i++ {
				results[i] = Result[R]{Index: i, Err: err}
			}
			failed += len(items) - lo
			log.Debug().
				Str("label", cfg.Label).
				Int("batch", b+1).
				Int("skipped", len(items)-lo).
				Msg("Batch run stopping (context cancelled)")
			break
		}

		indices := make([]int, hi-lo)
		for i := range indices {
			indices[i] = lo + i
		}

		mapper := iter.Mapper[int, Result[R]]{MaxGoroutines: len(indices)}
		batchResults := mapper.Map(indices, func(idx *int) Result[R] {
			return call(ctx, *idx, items[*idx], cfg.Timeout, fn)
		})

		for _, r := range batchResults {
			results[r.Index] = r
			if r.Err != nil {
				failed++
			}
		}

		if (b+1)%cfg.LogEvery == 0 || b+1 == totalBatches {
			log.Info().
				Str("label", cfg.Label).
				Int("batch", b+1).
				Int("total", totalBatches).
				Int("failed", failed).
				Float64("progress_pct", float64(b+1)/float64(totalBatches)*100).
				Msg("Batch progress")
		}
	}

	log.Info().
		Str("label", cfg.Label).
		Int("items", len(items)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch run complete")

	return results
}

func call[T, R any](ctx context.Context, idx int, item T, timeout time.Duration, fn Func[T, R]) Result[R] {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	v, err := fn(ctx, item)
	if err != nil {
		log.Warn().Err(err).Int("index", idx).Msg("Batch item failed")
	}
	return Result[R]{Index: idx, Value: v, Err: err}
}

// Values returns the successful values in input order and the first error seen.
func Values[R any](results []Result[R]) ([]R, error) {
	out := make([]R, 0, len(results))
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		out = append(out, r.Value)
	}
	return out, firstErr
}
