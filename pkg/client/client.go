// Package client implements the Brightpearl request-execution engine:
// credential headers, rate limiting, retry classification with backoff,
// and shape-directed decoding of the loosely typed API payloads.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pmsteil/brightpearl-client/pkg/ratelimit"
)

// Brightpearl credential headers.
const (
	headerAppRef       = "brightpearl-app-ref"
	headerAccountToken = "brightpearl-account-token"
)

// maxErrorBody bounds how much of a failed response body is kept for
// diagnosis.
const maxErrorBody = 512

// Prometheus metrics for request execution.
var (
	bpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bp_requests_total",
		Help: "Total Brightpearl requests by endpoint and status",
	}, []string{"endpoint", "status"})

	bpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bp_request_duration_seconds",
		Help:    "Brightpearl request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	bpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bp_errors_total",
		Help: "Total Brightpearl errors by class",
	}, []string{"class"})
)

// Client executes logical Brightpearl API calls. It owns its
// configuration, rate limiter state and logger; there are no
// process-wide singletons. One Client serves one account; independent
// accounts get independent Clients and share nothing.
type Client struct {
	httpClient *http.Client
	config     Config
	limiter    *ratelimit.Limiter
	policy     RetryPolicy
	logger     zerolog.Logger

	// Injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client from the given configuration. Construction fails
// fast with a *ConfigError on any invalid parameter; nothing touches the
// network here.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = cfg.Timeout

	componentLogger := logger.With().Str("component", "bp-client").Logger()

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		limiter:    ratelimit.New(cfg.RateLimit, componentLogger),
		policy:     RetryPolicy{MaxRetries: cfg.MaxRetries},
		logger:     componentLogger,
		sleep:      sleepContext,
	}, nil
}

// Config returns the immutable configuration the client was built with.
func (c *Client) Config() Config {
	return c.config
}

// Execute performs one logical API call: for each attempt it waits on
// the rate limiter, performs the transport call with the credential
// headers attached, and classifies the outcome. Successful responses
// (status 200 or 207) are decoded according to shape; 207 is accepted
// because one read endpoint in this protocol idiosyncratically returns
// it. Execute never touches the response cache; callers wrap cache logic
// around it explicitly.
func (c *Client) Execute(ctx context.Context, method, path string, body any, shape ResponseShape) (any, error) {
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("unsupported method %q: only GET and POST are used", method)
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = data
	}

	fullURL := c.config.BaseURL + path
	endpoint := endpointLabel(path)

	start := time.Now()
	defer func() {
		bpRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var lastOutcome Outcome
	for attempt := 0; attempt < c.policy.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		raw, outcome := c.attempt(ctx, method, fullURL, endpoint, payload)
		if outcome == nil {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Int("attempt", attempt+1).
				Msg("Request succeeded")
			return decodePayload(raw, shape)
		}

		lastOutcome = *outcome
		bpErrorsTotal.WithLabelValues(string(outcome.Class)).Inc()

		// Terminal by classification, not by exhaustion.
		if !shouldRetry(outcome.Class) {
			return nil, c.terminal(*outcome, attempt+1)
		}

		decision := c.policy.Decide(attempt, *outcome)
		if !decision.Retry {
			break
		}

		bpRetriesTotal.WithLabelValues(string(outcome.Class)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("error_class", string(outcome.Class)).
			Int("attempt", attempt+1).
			Int("max_retries", c.policy.MaxRetries).
			Dur("backoff", decision.Delay).
			Msg("Request failed, retrying")

		if decision.Delay > 0 {
			bpRetryBackoffSeconds.WithLabelValues(string(outcome.Class)).Observe(decision.Delay.Seconds())
			if err := c.sleep(ctx, decision.Delay); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
			}
		}
	}

	// Attempt budget exhausted.
	bpRetryExhaustedTotal.WithLabelValues(string(lastOutcome.Class)).Inc()
	c.logger.Error().
		Str("endpoint", endpoint).
		Str("error_class", string(lastOutcome.Class)).
		Int("max_retries", c.policy.MaxRetries).
		Msg("Max retries exceeded")

	return nil, c.exhausted(lastOutcome)
}

// attempt performs one transport call. A nil Outcome means success and
// raw holds the response body.
func (c *Client) attempt(ctx context.Context, method, fullURL, endpoint string, payload []byte) ([]byte, *Outcome) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, &Outcome{Class: ErrorClassNetwork, Err: err}
	}

	req.Header.Set(headerAppRef, c.config.AppRef)
	req.Header.Set(headerAccountToken, c.config.AccountToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := ErrorClassNetwork
		if isTimeout(err) {
			class = ErrorClassTimeout
		}
		c.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Str("error_class", string(class)).
			Msg("Transport call failed")
		bpRequestsTotal.WithLabelValues(endpoint, string(class)).Inc()
		return nil, &Outcome{Class: class, Err: err}
	}
	defer resp.Body.Close()

	bpRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	// 200 is the normal success; 207 is accepted for the one read
	// endpoint that reports per-item status in a multi-status body.
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusMultiStatus {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &Outcome{Class: ErrorClassNetwork, Err: fmt.Errorf("read response body: %w", err)}
		}
		return raw, nil
	}

	truncated, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	outcome := &Outcome{
		Class:      classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Body:       string(truncated),
	}

	event := c.logger.Warn()
	if outcome.Class == ErrorClassServer {
		// Server-side condition: terminal here, but logged as the
		// server's fault rather than the caller's.
		event = c.logger.Error()
	}
	event.
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("error_class", string(outcome.Class)).
		Msg("Brightpearl request error")

	return nil, outcome
}

// terminal builds the error for a failure the policy never retries.
func (c *Client) terminal(outcome Outcome, attempts int) error {
	var msg string
	switch outcome.Class {
	case ErrorClassClient:
		msg = "client error"
	case ErrorClassServer:
		msg = "server error"
	default:
		msg = "unexpected HTTP status"
	}

	return &APIError{
		StatusCode: outcome.StatusCode,
		Class:      outcome.Class,
		Message:    msg,
		Body:       outcome.Body,
		Attempts:   attempts,
		Err:        outcome.Err,
	}
}

// exhausted builds the error for an exhausted attempt budget.
func (c *Client) exhausted(outcome Outcome) error {
	msg := "max retries exceeded"
	if outcome.Class == ErrorClassNetwork && outcome.Err != nil {
		msg = fmt.Sprintf("request failed after %d attempts: %v", c.policy.MaxRetries, outcome.Err)
	}

	return &APIError{
		StatusCode: outcome.StatusCode,
		Class:      outcome.Class,
		Message:    msg,
		Body:       outcome.Body,
		Attempts:   c.policy.MaxRetries,
		Err:        ErrRetryExhausted,
	}
}

// GetObject performs a GET expecting a JSON object payload.
func (c *Client) GetObject(ctx context.Context, path string) (map[string]any, error) {
	result, err := c.Execute(ctx, http.MethodGet, path, nil, ShapeObject)
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

// GetList performs a GET expecting a JSON list payload.
func (c *Client) GetList(ctx context.Context, path string) ([]any, error) {
	result, err := c.Execute(ctx, http.MethodGet, path, nil, ShapeList)
	if err != nil {
		return nil, err
	}
	return result.([]any), nil
}

// PostList performs a POST expecting a JSON list payload, e.g. the
// correction endpoint's list of created ids.
func (c *Client) PostList(ctx context.Context, path string, body any) ([]any, error) {
	result, err := c.Execute(ctx, http.MethodPost, path, body, ShapeList)
	if err != nil {
		return nil, err
	}
	return result.([]any), nil
}

// Search performs a paginated search call, adding the pageSize and
// firstResult query parameters to path.
func (c *Client) Search(ctx context.Context, path string, pageSize, firstResult int) (*SearchPage, error) {
	parsed, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse search path %q: %w", path, err)
	}

	query := parsed.Query()
	query.Set("pageSize", strconv.Itoa(pageSize))
	query.Set("firstResult", strconv.Itoa(firstResult))
	parsed.RawQuery = query.Encode()

	result, err := c.Execute(ctx, http.MethodGet, parsed.String(), nil, ShapeSearch)
	if err != nil {
		return nil, err
	}
	return result.(*SearchPage), nil
}

// endpointLabel strips the query string so metric labels stay bounded.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// isTimeout reports whether a transport error was a timeout rather than
// a generic connection failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
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
