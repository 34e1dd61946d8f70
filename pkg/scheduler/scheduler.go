package scheduler

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Scheduler arbitrates calls to one rate-limited API.
// All state is guarded by mu; a Scheduler must not be copied.
type Scheduler struct {
	cfg     Config
	backoff Backoff
	limiter *rate.Limiter
	logger  zerolog.Logger
	metrics schedulerMetrics

	mu             sync.Mutex
	active         int
	queue          list.List // of *waiter, FIFO
	lastDispatch   time.Time
	remaining      int
	remainingKnown bool
	pausedUntil    time.Time
}

// waiter is a pending admission. granted is set under mu by the releaser,
// together with the active increment, before ready is closed.
type waiter struct {
	ready   chan struct{}
	granted bool
	elem    *list.Element
}

type schedulerMetrics struct {
	active     prometheus.Gauge
	queued     prometheus.Gauge
	remaining  prometheus.Gauge
	wait       prometheus.Observer
	dispatches prometheus.Counter
	pauses     prometheus.Counter
}

// Stats is a point-in-time snapshot of the scheduler state.
type Stats struct {
	Name           string    `json:"name"`
	MaxConcurrent  int       `json:"max_concurrent"`
	Active         int       `json:"active"`
	Queued         int       `json:"queued"`
	Remaining      int       `json:"remaining"`
	RemainingKnown bool      `json:"remaining_known"`
	LastDispatch   time.Time `json:"last_dispatch"`
	PausedUntil    time.Time `json:"paused_until"`
}

// New creates a scheduler. One scheduler is meant to serve exactly one API.
func New(cfg Config, logger zerolog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "API"
	}

	s := &Scheduler{
		cfg:     cfg,
		backoff: cfg.backoff(),
		logger:  logger.With().Str("scheduler", cfg.Name).Logger(),
		metrics: schedulerMetrics{
			active:     activeTasks.WithLabelValues(cfg.Name),
			queued:     queuedTasks.WithLabelValues(cfg.Name),
			remaining:  rateLimitRemaining.WithLabelValues(cfg.Name),
			wait:       admissionWaitSeconds.WithLabelValues(cfg.Name),
			dispatches: dispatchesTotal.WithLabelValues(cfg.Name),
			pauses:     rateLimitPausesTotal.WithLabelValues(cfg.Name),
		},
	}
	if cfg.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return s, nil
}

// Name returns the diagnostic label.
func (s *Scheduler) Name() string {
	return s.cfg.Name
}

// Config returns the configuration the scheduler was built with.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Stats returns a snapshot of the scheduler state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Name:           s.cfg.Name,
		MaxConcurrent:  s.cfg.MaxConcurrent,
		Active:         s.active,
		Queued:         s.queue.Len(),
		Remaining:      s.remaining,
		RemainingKnown: s.remainingKnown,
		LastDispatch:   s.lastDispatch,
		PausedUntil:    s.pausedUntil,
	}
}

// Execute runs task under the scheduler's admission, pacing and retry rules.
//
// Success results are returned with a nil error. Non-retriable failures and
// exhausted retries return the last result together with a *TerminalError.
// If ctx ends while waiting, the error matches ErrCancelled and ctx.Err().
func (s *Scheduler) Execute(ctx context.Context, task Task) (Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := s.attempt(ctx, task)
		if err != nil {
			return res, cancelled(err)
		}
		kind := res.Kind.String()
		outcomesTotal.WithLabelValues(s.cfg.Name, kind).Inc()

		if !res.Kind.retriable() {
			if res.Kind == KindSuccess {
				if attempt > 1 {
					s.logger.Info().Int("attempt", attempt).Msg("Task succeeded after retry")
				}
				return res, nil
			}
			return res, &TerminalError{Scheduler: s.cfg.Name, Kind: res.Kind, Attempts: attempt, Err: res.Err}
		}

		if attempt > s.cfg.MaxRetries {
			retryExhaustedTotal.WithLabelValues(s.cfg.Name, kind).Inc()
			s.logger.Warn().
				Str("kind", kind).
				Int("attempts", attempt).
				Msg("Retry attempts exhausted")
			return res, &TerminalError{Scheduler: s.cfg.Name, Kind: res.Kind, Attempts: attempt, Exhausted: true, Err: res.Err}
		}

		delay := s.backoff.Delay(attempt, res)
		retriesTotal.WithLabelValues(s.cfg.Name, kind).Inc()
		retryBackoffSeconds.WithLabelValues(s.cfg.Name, kind).Observe(delay.Seconds())

		s.logger.Warn().
			Str("kind", kind).
			Int("attempt", attempt).
			Int("retries_left", s.cfg.MaxRetries-attempt+1).
			Dur("backoff", delay).
			Err(res.Err).
			Msg("Retrying task after backoff")

		// No slot is held here: the retry competes with queued callers.
		if err := sleep(ctx, delay); err != nil {
			return res, cancelled(err)
		}
	}
}

// attempt performs one admission-dispatch-release cycle. It returns an error
// only if ctx ends before the task is dispatched.
func (s *Scheduler) attempt(ctx context.Context, task Task) (Result, error) {
	start := time.Now()
	if err := s.acquire(ctx); err != nil {
		return Result{}, err
	}
	defer s.release()

	if err := s.awaitDispatch(ctx); err != nil {
		return Result{}, err
	}
	s.metrics.wait.Observe(time.Since(start).Seconds())
	s.metrics.dispatches.Inc()

	res := task(ctx)
	s.observe(ctx, res)
	return res, nil
}

// acquire takes a slot, queueing FIFO behind earlier callers when none is free.
func (s *Scheduler) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.active < s.cfg.MaxConcurrent && s.queue.Len() == 0 {
		s.active++
		s.updateGaugesLocked()
		s.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan struct{})}
	w.elem = s.queue.PushBack(w)
	queued := s.queue.Len()
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.logger.Debug().Int("queued", queued).Msg("Waiting for slot")

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		if w.granted {
			// Handed a slot while giving up: pass it on.
			s.releaseLocked()
		} else {
			s.queue.Remove(w.elem)
			s.updateGaugesLocked()
		}
		return ctx.Err()
	}
}

func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

// releaseLocked frees a slot and hands it to the oldest waiter, if any.
func (s *Scheduler) releaseLocked() {
	if s.active <= 0 {
		panic(fmt.Sprintf("scheduler %s: slot released more often than acquired", s.cfg.Name))
	}
	s.active--
	if front := s.queue.Front(); front != nil {
		w := s.queue.Remove(front).(*waiter)
		w.granted = true
		s.active++
		close(w.ready)
	}
	s.updateGaugesLocked()
}

// awaitDispatch waits out the token bucket, any global pause and the minimum
// interval, then records the dispatch time. The check and the commit of
// lastDispatch happen under one lock so concurrent holders stay spaced.
func (s *Scheduler) awaitDispatch(ctx context.Context) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
	}

	for {
		s.mu.Lock()
		now := time.Now()
		wait := s.pausedUntil.Sub(now)
		if s.cfg.MinInterval > 0 && !s.lastDispatch.IsZero() {
			if d := s.lastDispatch.Add(s.cfg.MinInterval).Sub(now); d > wait {
				wait = d
			}
		}
		if wait <= 0 {
			s.lastDispatch = now
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// observe records the remaining-count hint and, when it is low, pauses every
// dispatch on this scheduler for RateLimitPause. The reporting caller waits
// out the pause too, still holding its slot.
func (s *Scheduler) observe(ctx context.Context, res Result) {
	if !res.HasRemaining {
		return
	}
	s.metrics.remaining.Set(float64(res.Remaining))

	s.mu.Lock()
	s.remaining = res.Remaining
	s.remainingKnown = true
	var wait time.Duration
	if res.Remaining > 0 && res.Remaining < s.cfg.RateLimitThreshold && s.cfg.RateLimitPause > 0 {
		now := time.Now()
		if until := now.Add(s.cfg.RateLimitPause); until.After(s.pausedUntil) {
			s.pausedUntil = until
		}
		wait = s.pausedUntil.Sub(now)
	}
	s.mu.Unlock()

	if wait <= 0 {
		return
	}
	s.metrics.pauses.Inc()
	s.logger.Warn().
		Int("remaining", res.Remaining).
		Int("threshold", s.cfg.RateLimitThreshold).
		Dur("pause", wait).
		Msg("Rate limit low, pausing dispatches")

	// The task already ran; a cancelled pause still hands its result back.
	if err := sleep(ctx, wait); err != nil {
		s.logger.Debug().Err(err).Msg("Pause interrupted")
	}
}

func (s *Scheduler) updateGaugesLocked() {
	s.metrics.active.Set(float64(s.active))
	s.metrics.queued.Set(float64(s.queue.Len()))
}
