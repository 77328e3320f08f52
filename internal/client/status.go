package client

import "time"

// AttemptState is the state of a gateway operation.
type AttemptState int

const (
	StateAttempting AttemptState = iota
	StateRetrying
	StateSucceeded
	StateFailed
)

// String returns the string representation of the state.
func (s AttemptState) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusCallback provides notifications about gateway operation status.
// This allows the UI to show feedback while a request is being retried.
type StatusCallback interface {
	// OnStateChange is called on every state transition of an operation.
	// attempt is 1-based.
	OnStateChange(op string, state AttemptState, attempt int)

	// OnRetry is called before waiting to retry a failed request.
	// attempt is the retry number (1-based), maxAttempts the total allowed retries.
	OnRetry(attempt, maxAttempts int, delay time.Duration, reason string)
}

// DefaultStatusCallback is a no-op implementation of StatusCallback.
type DefaultStatusCallback struct{}

// OnStateChange does nothing.
func (d *DefaultStatusCallback) OnStateChange(op string, state AttemptState, attempt int) {}

// OnRetry does nothing.
func (d *DefaultStatusCallback) OnRetry(attempt, maxAttempts int, delay time.Duration, reason string) {
}
