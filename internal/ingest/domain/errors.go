package domain

import "errors"

var (
	// ErrUnknownAPIKey is returned when a command request names an apiKey
	// with no registered session
	ErrUnknownAPIKey = errors.New("unknown api key")

	// ErrEmptyPayload is returned when a command request carries no payload
	ErrEmptyPayload = errors.New("empty command payload")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
