package ai

import "errors"

// TransientError marks a provider failure that may succeed later
// (throttling, 5xx, timeouts)
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// IsTransient returns true if the error is transient
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}
