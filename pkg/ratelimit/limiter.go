// Package ratelimit enforces a minimum interval between Brightpearl API
// requests. Brightpearl meters requests per account, so the client spaces
// calls instead of bursting and burning the account's request quota.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit enforcement.
var (
	bpRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bp_rate_limit_waits_total",
		Help: "Total number of requests delayed by the minimum-interval limiter",
	})

	bpRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bp_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the minimum request interval",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Limiter spaces calls so that at least the configured interval elapses
// between consecutive requests. It is safe for concurrent use: the
// timestamp check-and-update is guarded so two callers cannot both
// observe a stale "last call" time and bypass the interval.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	logger   zerolog.Logger

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter with the given minimum inter-request interval.
func New(interval time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{
		interval: interval,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous call returned, then records the new last-call timestamp. The
// wait is the only suspension point; it aborts early if ctx is cancelled,
// in which case the timestamp is not advanced.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		elapsed := l.now().Sub(l.last)
		if elapsed < l.interval {
			pause := l.interval - elapsed

			l.logger.Debug().
				Dur("pause", pause).
				Msg("Rate limit: spacing request")

			bpRateLimitWaitsTotal.Inc()
			bpRateLimitWaitSeconds.Observe(pause.Seconds())

			if err := l.sleep(ctx, pause); err != nil {
				return err
			}
		}
	}

	l.last = l.now()
	return nil
}

// Interval returns the configured minimum inter-request interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
