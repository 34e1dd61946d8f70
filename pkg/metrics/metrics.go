// Package metrics exposes the Prometheus registry used by the scheduler,
// client and cache packages. Metrics are defined with promauto in their own
// packages; this package documents them and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all package metrics are added to.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves all registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Scheduler Metrics (pkg/scheduler), labelled by scheduler name:
//   - fetch_scheduler_active_tasks (Gauge): Tasks holding a slot
//   - fetch_scheduler_queued_tasks (Gauge): Callers waiting for a slot
//   - fetch_scheduler_admission_wait_seconds (Histogram): Time from Execute to slot grant
//   - fetch_scheduler_dispatches_total (Counter): Task dispatches
//   - fetch_scheduler_attempt_outcomes_total{kind} (Counter): Attempt results by kind
//   - fetch_scheduler_retries_total{kind} (Counter): Retries by triggering kind
//   - fetch_scheduler_retry_backoff_seconds{kind} (Histogram): Backoff waited before a retry
//   - fetch_scheduler_retry_exhausted_total{kind} (Counter): Calls that ran out of retries
//   - fetch_scheduler_rate_limit_remaining (Gauge): Last reported remaining count
//   - fetch_scheduler_rate_limit_pauses_total (Counter): Pre-emptive pauses entered
//
// Request Metrics (pkg/client), labelled by provider:
//   - fetch_client_requests_total{status} (Counter): HTTP exchanges by status (or cache_hit, network_error)
//   - fetch_client_request_duration_seconds (Histogram): End-to-end duration including queueing
//   - fetch_client_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Cache Metrics (pkg/cache):
//   - fetch_cache_hits_total{provider} (Counter): Cache hits
//   - fetch_cache_misses_total{provider} (Counter): Cache misses
//   - fetch_cache_stored_bytes_total{provider} (Counter): Bytes written to Redis
//   - fetch_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Queue depth per scheduler
//   fetch_scheduler_queued_tasks
//
//   # Rejection rate
//   sum by (scheduler) (rate(fetch_scheduler_attempt_outcomes_total{kind="rejected"}[5m]))
//
//   # Cache Hit Rate
//   sum(rate(fetch_cache_hits_total[5m])) /
//   (sum(rate(fetch_cache_hits_total[5m])) + sum(rate(fetch_cache_misses_total[5m])))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(fetch_client_request_duration_seconds_bucket[5m]))
