// Package scheduler implements a bounded-concurrency request scheduler for
// rate-limited HTTP APIs.
//
// A Scheduler is created once per target API and shared by every caller of
// that API. Each call to Execute:
//
//   - waits for a free slot (at most MaxConcurrent tasks run at once, admission is FIFO)
//   - waits out the optional token bucket, any global pause and MinInterval
//   - runs the task exactly once
//   - records the provider's remaining-count hint and pauses all dispatches
//     when it drops below RateLimitThreshold
//   - releases the slot and, for rejections and transport failures, waits the
//     backoff and competes for a slot again, up to MaxRetries times
//
// Tasks classify their own results (see Result); the scheduler never looks at
// a wire format. The ratelimit package provides an HTTP classifier.
//
// # Basic Usage
//
//	s, err := scheduler.New(scheduler.DefaultConfig("Trakt"), logger)
//	if err != nil {
//		return err
//	}
//	res, err := s.Execute(ctx, func(ctx context.Context) scheduler.Result {
//		resp, err := http.DefaultClient.Do(req.WithContext(ctx))
//		return classifier.Classify(resp, err)
//	})
//
// # Metrics
//
//   - fetch_scheduler_active_tasks{scheduler}
//   - fetch_scheduler_queued_tasks{scheduler}
//   - fetch_scheduler_admission_wait_seconds{scheduler}
//   - fetch_scheduler_dispatches_total{scheduler}
//   - fetch_scheduler_attempt_outcomes_total{scheduler,kind}
//   - fetch_scheduler_retries_total{scheduler,kind}
//   - fetch_scheduler_retry_backoff_seconds{scheduler,kind}
//   - fetch_scheduler_retry_exhausted_total{scheduler,kind}
//   - fetch_scheduler_rate_limit_remaining{scheduler}
//   - fetch_scheduler_rate_limit_pauses_total{scheduler}
package scheduler
