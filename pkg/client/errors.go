package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("max retries exceeded")

	// ErrContextCancelled is returned when the context is cancelled while
	// waiting on the rate limiter or a backoff delay.
	ErrContextCancelled = errors.New("context cancelled")
)

// ConfigError reports an invalid construction parameter. It is raised by
// New before any network access and is never retried.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid client configuration: %s: %s", e.Field, e.Reason)
}

// APIError represents a terminal Brightpearl API failure with the context
// needed to distinguish "fix your input" from "retry later" from "server
// problem".
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string

	// Body holds the (truncated) response body for diagnosis.
	Body string

	// Attempts is how many transport calls were made before giving up.
	Attempts int

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("brightpearl %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("brightpearl %s error: %s: %v", e.Class, e.Message, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("brightpearl %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("brightpearl %s error: %s", e.Class, e.Message)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// DecodeError reports a response whose shape did not match the one the
// call site expected. It is distinct from transport errors: the request
// succeeded, the payload is unusable.
type DecodeError struct {
	Expected string
	Got      string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode response: expected %s, got %s: %v", e.Expected, e.Got, e.Err)
	}
	return fmt.Sprintf("decode response: expected %s, got %s", e.Expected, e.Got)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
