package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry handling.
var (
	bpRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bp_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	bpRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bp_retry_backoff_seconds",
		Help:    "Backoff duration before retries by error class",
		Buckets: []float64{1, 4, 9, 16, 25, 36},
	}, []string{"error_class"})

	bpRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bp_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// ErrorClass represents a classification of request outcomes.
type ErrorClass string

const (
	// ErrorClassTimeout represents a transport timeout.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassNetwork represents a generic transport failure.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassRateLimit represents a 429 response.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassProtocol represents any other status outside {200, 207}.
	ErrorClassProtocol ErrorClass = "protocol"
)

// Outcome is the classified result of one transport attempt.
type Outcome struct {
	Class      ErrorClass
	StatusCode int

	// Body is the truncated response body, kept for diagnosis on
	// terminal failures.
	Body string

	Err error
}

// Decision is what the retry policy tells the executor to do with a
// failed attempt.
type Decision struct {
	Retry bool

	// Delay is an extra pause before the next attempt, on top of the
	// rate limiter's spacing. Only rate-limit outcomes carry one.
	Delay time.Duration
}

// RetryPolicy decides whether a classified failure is retried and with
// what delay. All outcome classes consume the same attempt budget.
//
// 5xx responses are terminal here, mirroring 4xx. That is a deliberate
// policy choice carried over from the upstream integration; a stricter
// client could retry them, but this one reports server failures
// immediately.
type RetryPolicy struct {
	// MaxRetries is the total attempt budget, including the first call.
	MaxRetries int
}

// Decide returns the decision for a 0-based attempt index and its
// classified outcome.
//
//   - timeout: retry immediately, the rate limiter alone paces attempts
//   - 429: retry after a quadratic backoff of (attempt+1)^2 seconds
//   - generic transport failure: retry silently until the last attempt
//   - 4xx, 5xx and anything else outside {200, 207}: terminal
func (p RetryPolicy) Decide(attempt int, outcome Outcome) Decision {
	if !shouldRetry(outcome.Class) {
		return Decision{}
	}

	budgetLeft := attempt < p.MaxRetries-1
	if outcome.Class == ErrorClassRateLimit {
		return Decision{Retry: budgetLeft, Delay: Backoff(attempt)}
	}
	return Decision{Retry: budgetLeft}
}

// shouldRetry reports whether an error class is transient. Client,
// server and protocol outcomes are terminal on first sight.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassTimeout, ErrorClassNetwork, ErrorClassRateLimit:
		return true
	default:
		return false
	}
}

// Backoff returns the quadratic backoff delay for a 0-based attempt
// index: (attempt+1)^2 seconds.
func Backoff(attempt int) time.Duration {
	n := attempt + 1
	return time.Duration(n*n) * time.Second
}

// classifyStatus maps an HTTP status code outside {200, 207} to its
// error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500 && status < 600:
		return ErrorClassServer
	default:
		return ErrorClassProtocol
	}
}
