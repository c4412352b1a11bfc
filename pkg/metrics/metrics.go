// Package metrics documents the Prometheus metrics exposed by the
// Brightpearl client. The metrics themselves are defined with promauto
// in the packages that own them, keeping registration local and free of
// circular imports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default registerer all client metrics attach to.
var Registry = prometheus.DefaultRegisterer

// Metrics Reference
//
// Request metrics (pkg/client):
//   - bp_requests_total{endpoint, status} (Counter): transport calls by
//     endpoint and HTTP status (or error class for failed calls)
//   - bp_request_duration_seconds{endpoint} (Histogram): logical call
//     duration, including retries and backoff
//   - bp_errors_total{class} (Counter): classified failures
//
// Retry metrics (pkg/client):
//   - bp_retries_total{error_class} (Counter): retry attempts
//   - bp_retry_backoff_seconds{error_class} (Histogram): quadratic
//     backoff pauses before retries
//   - bp_retry_exhausted_total{error_class} (Counter): calls that ran
//     out of attempts
//
// Rate limit metrics (pkg/ratelimit):
//   - bp_rate_limit_waits_total (Counter): requests delayed to honor
//     the minimum interval
//   - bp_rate_limit_wait_seconds (Histogram): time spent waiting
//
// Cache metrics (pkg/cache):
//   - bp_cache_hits_total (Counter)
//   - bp_cache_misses_total{reason} (Counter): reason is absent|stale
//   - bp_cache_errors_total{operation} (Counter)
//   - bp_cache_invalidations_total (Counter)
//
// Pagination metrics (pkg/pagination):
//   - bp_pages_fetched_total (Counter)
//   - bp_page_walk_duration_seconds (Histogram)
//
// Reconciliation metrics (pkg/inventory):
//   - bp_corrections_submitted_total (Counter)
//   - bp_reconciliations_total{outcome} (Counter): outcome is
//     submitted|noop|failed
//
// Useful queries:
//
//   # Cache hit rate
//   rate(bp_cache_hits_total[5m]) /
//   (rate(bp_cache_hits_total[5m]) + sum(rate(bp_cache_misses_total[5m])))
//
//   # Share of calls hitting the 429 backoff path
//   rate(bp_retries_total{error_class="rate_limit"}[5m])
//
//   # P95 logical call latency
//   histogram_quantile(0.95, rate(bp_request_duration_seconds_bucket[5m]))
