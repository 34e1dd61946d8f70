package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for scheduler operations, labelled by scheduler name.
var (
	activeTasks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fetch_scheduler_active_tasks",
		Help: "Number of tasks currently holding a scheduler slot",
	}, []string{"scheduler"})

	queuedTasks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fetch_scheduler_queued_tasks",
		Help: "Number of callers waiting for a scheduler slot",
	}, []string{"scheduler"})

	admissionWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_scheduler_admission_wait_seconds",
		Help:    "Time spent waiting for a slot, pacing and pauses before dispatch",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"scheduler"})

	dispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_scheduler_dispatches_total",
		Help: "Total number of task attempts dispatched",
	}, []string{"scheduler"})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_scheduler_attempt_outcomes_total",
		Help: "Task attempt results by kind",
	}, []string{"scheduler", "kind"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_scheduler_retries_total",
		Help: "Total number of retries by failure kind",
	}, []string{"scheduler", "kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_scheduler_retry_backoff_seconds",
		Help:    "Backoff waited before a retry by failure kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"scheduler", "kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_scheduler_retry_exhausted_total",
		Help: "Total number of executions that exhausted their retries",
	}, []string{"scheduler", "kind"})

	rateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fetch_scheduler_rate_limit_remaining",
		Help: "Last remaining request count reported by the provider",
	}, []string{"scheduler"})

	rateLimitPausesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_scheduler_rate_limit_pauses_total",
		Help: "Total number of pre-emptive pauses triggered by a low remaining count",
	}, []string{"scheduler"})
)
