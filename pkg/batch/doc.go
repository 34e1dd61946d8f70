// Package batch runs a list of calls in fixed-size waves on top of a
// scheduler-backed client.
//
// Each batch is started concurrently and awaited before the next one begins,
// so a batch of N items never has more than N calls outstanding even before
// the scheduler's own admission control applies. Results come back in input
// order, one per item, with per-item errors instead of a single failure.
//
// Example usage:
//
//	cfg := batch.DefaultConfig()
//	cfg.Size = 5
//	results := batch.Run(ctx, imdbIDs, cfg, func(ctx context.Context, id string) (Rating, error) {
//		return omdb.Rating(ctx, id)
//	})
//
// The runner:
//   - Splits the input into batches of Config.Size
//   - Fans a batch out on a bounded conc iterator
//   - Marks items of unstarted batches with the context error on cancellation
//   - Logs progress every Config.LogEvery batches and on the last one
package batch
